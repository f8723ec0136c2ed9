package presentation

import "github.com/bwmarrin/discordgo"

// Commands returns all slash commands for the library module.
func Commands() []*discordgo.ApplicationCommand {
	playlistName := func(description string) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "name",
			Description: description,
			Required:    true,
		}
	}

	return []*discordgo.ApplicationCommand{
		{
			Name:        "playlist",
			Description: "Manage saved playlists",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "create",
					Description: "Create a new empty playlist",
					Options: []*discordgo.ApplicationCommandOption{
						playlistName("Name for the new playlist"),
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "delete",
					Description: "Delete a playlist and all its tracks",
					Options: []*discordgo.ApplicationCommandOption{
						playlistName("Playlist to delete"),
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "rename",
					Description: "Rename a playlist",
					Options: []*discordgo.ApplicationCommandOption{
						playlistName("Playlist to rename"),
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "new-name",
							Description: "New name for the playlist",
							Required:    true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "add",
					Description: "Add a track to a playlist",
					Options: []*discordgo.ApplicationCommandOption{
						playlistName("Playlist to add to"),
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "query",
							Description: "URL or search term",
							Required:    true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "remove",
					Description: "Remove a track from a playlist",
					Options: []*discordgo.ApplicationCommandOption{
						playlistName("Playlist to remove from"),
						{
							Type:        discordgo.ApplicationCommandOptionInteger,
							Name:        "position",
							Description: "Position of the track to remove (1-indexed)",
							Required:    true,
							MinValue:    floatPtr(1),
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "move",
					Description: "Move a track within a playlist",
					Options: []*discordgo.ApplicationCommandOption{
						playlistName("Playlist to edit"),
						{
							Type:        discordgo.ApplicationCommandOptionInteger,
							Name:        "from",
							Description: "Current position of the track (1-indexed)",
							Required:    true,
							MinValue:    floatPtr(1),
						},
						{
							Type:        discordgo.ApplicationCommandOptionInteger,
							Name:        "to",
							Description: "New position for the track (1-indexed)",
							Required:    true,
							MinValue:    floatPtr(1),
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "list",
					Description: "List this server's playlists",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "show",
					Description: "Show the tracks of a playlist",
					Options: []*discordgo.ApplicationCommandOption{
						playlistName("Playlist to show"),
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "play",
					Description: "Queue all tracks of a playlist",
					Options: []*discordgo.ApplicationCommandOption{
						playlistName("Playlist to play"),
					},
				},
			},
		},
		{
			Name:        "profile",
			Description: "Manage this server's playback defaults",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "volume",
					Description: "Set the default volume",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionInteger,
							Name:        "percent",
							Description: "Volume from 0 to 200",
							Required:    true,
							MinValue:    floatPtr(0),
							MaxValue:    200,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "eq",
					Description: "Set the default equalizer profile",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "profile",
							Description: "Equalizer profile",
							Required:    true,
							Choices: []*discordgo.ApplicationCommandOptionChoice{
								{Name: "Balanced", Value: "balanced"},
								{Name: "Hi-Fi", Value: "hifi"},
							},
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "show",
					Description: "Show the stored playback defaults",
				},
			},
		},
	}
}

func floatPtr(f float64) *float64 {
	return &f
}
