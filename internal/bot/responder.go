package bot

import "github.com/bwmarrin/discordgo"

// Responder abstracts replying to a single interaction so command handlers
// can be exercised without a gateway session.
type Responder interface {
	Respond(response *discordgo.InteractionResponse) error
}

// DiscordResponder replies through the Discord REST API.
type DiscordResponder struct {
	session     *discordgo.Session
	interaction *discordgo.Interaction
}

var _ Responder = (*DiscordResponder)(nil)

// NewDiscordResponder binds a responder to one interaction.
func NewDiscordResponder(s *discordgo.Session, i *discordgo.Interaction) *DiscordResponder {
	return &DiscordResponder{session: s, interaction: i}
}

func (r *DiscordResponder) Respond(response *discordgo.InteractionResponse) error {
	return r.session.InteractionRespond(r.interaction, response)
}

// MockResponder captures the response a handler produced. Err, when set, is
// returned from Respond to simulate API failures.
type MockResponder struct {
	LastResponse *discordgo.InteractionResponse
	Err          error
}

var _ Responder = (*MockResponder)(nil)

func (m *MockResponder) Respond(response *discordgo.InteractionResponse) error {
	m.LastResponse = response
	return m.Err
}
