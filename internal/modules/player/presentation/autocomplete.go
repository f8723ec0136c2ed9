package presentation

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/harunon/kanade/internal/modules/player/domain"
)

const (
	autocompleteTimeout  = 3 * time.Second
	autocompleteMinQuery = 2
	maxChoiceNameRunes   = 100
)

// HandleAutocomplete serves search suggestions for the /play query option.
func (h *Handlers) HandleAutocomplete(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	if data.Name != "play" {
		return
	}

	var query string
	for _, opt := range data.Options {
		if opt.Name == "query" && opt.Focused {
			query = strings.TrimSpace(opt.StringValue())
		}
	}

	var choices []*discordgo.ApplicationCommandOptionChoice
	// URLs are played as-is; suggestions only make sense for search terms.
	if len([]rune(query)) >= autocompleteMinQuery && !strings.Contains(query, "://") {
		ctx, cancel := context.WithTimeout(context.Background(), autocompleteTimeout)
		defer cancel()

		candidates, err := h.resolver.Search(ctx, query, h.searchMax)
		if err != nil {
			slog.Debug("autocomplete search failed", "query", query, "error", err)
		}
		for _, c := range candidates {
			name := c.Title
			if c.Duration > 0 {
				name += " (" + domain.FormatDuration(c.Duration) + ")"
			}
			if runes := []rune(name); len(runes) > maxChoiceNameRunes {
				name = string(runes[:maxChoiceNameRunes-3]) + "..."
			}
			choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
				Name:  name,
				Value: c.PageURL,
			})
		}
	}

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{
			Choices: choices,
		},
	})
	if err != nil {
		slog.Debug("failed to respond to autocomplete", "error", err)
	}
}
