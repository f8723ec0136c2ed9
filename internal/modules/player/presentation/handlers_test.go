package presentation

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"

	"github.com/harunon/kanade/internal/bot"
	"github.com/harunon/kanade/internal/modules/player/domain"
	"github.com/harunon/kanade/internal/modules/player/ports"
	"github.com/harunon/kanade/internal/modules/player/session"
)

type stubResolver struct{}

func (r *stubResolver) Resolve(ctx context.Context, query string, allowPlaylist bool) (*ports.ResolveResult, error) {
	return &ports.ResolveResult{Track: &domain.Track{Title: query, Duration: time.Minute}}, nil
}

func (r *stubResolver) Search(ctx context.Context, query string, maxResults int) ([]ports.Candidate, error) {
	return nil, nil
}

func (r *stubResolver) OpenStream(ctx context.Context, track *domain.Track, volume float64, profile domain.EQProfile) (ports.AudioStream, error) {
	return &stubStream{}, nil
}

type stubStream struct{}

func (s *stubStream) SetVolume(volume float64) {}
func (s *stubStream) Close() error             { return nil }

type stubNotifier struct{}

func (n *stubNotifier) UpdatePanel(channelID snowflake.ID, snap ports.Snapshot) {}
func (n *stubNotifier) SendInfo(channelID snowflake.ID, message string)         {}
func (n *stubNotifier) SendError(channelID snowflake.ID, message string)        {}
func (n *stubNotifier) SendFarewell(channelID snowflake.ID)                     {}

func newTestHandlers(t *testing.T) (*Handlers, *session.Registry) {
	t.Helper()

	registry := session.NewRegistry(func(guildID snowflake.ID) *session.Session {
		return session.New(guildID, &stubResolver{}, &stubNotifier{}, session.Options{})
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		registry.Shutdown(ctx)
	})

	h := NewHandlers(registry, &stubResolver{}, nil, func() SessionDefaults { return nil }, 10)
	return h, registry
}

func commandInteraction(name string, opts []*discordgo.ApplicationCommandInteractionDataOption) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Type:      discordgo.InteractionApplicationCommand,
			GuildID:   "100",
			ChannelID: "200",
			Member: &discordgo.Member{
				User: &discordgo.User{ID: "300", Username: "listener"},
			},
			Data: discordgo.ApplicationCommandInteractionData{
				Name:    name,
				Options: opts,
			},
		},
	}
}

func intOption(name string, value int) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name:  name,
		Type:  discordgo.ApplicationCommandOptionInteger,
		Value: float64(value),
	}
}

func stringOption(name, value string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name:  name,
		Type:  discordgo.ApplicationCommandOptionString,
		Value: value,
	}
}

func responseDescription(t *testing.T, r *bot.MockResponder) string {
	t.Helper()

	if r.LastResponse == nil || r.LastResponse.Data == nil || len(r.LastResponse.Data.Embeds) == 0 {
		t.Fatal("no embed in response")
	}
	return r.LastResponse.Data.Embeds[0].Description
}

func TestHandleVolume_ShowsCurrentVolume(t *testing.T) {
	h, registry := newTestHandlers(t)
	registry.GetOrCreate(snowflake.ID(100))

	r := &bot.MockResponder{}
	if err := h.HandleVolume(nil, commandInteraction("volume", nil), r); err != nil {
		t.Fatalf("HandleVolume() error = %v", err)
	}
	if got := responseDescription(t, r); got != "Volume is at 100%." {
		t.Errorf("description = %q", got)
	}
}

func TestHandleVolume_SetsVolume(t *testing.T) {
	h, registry := newTestHandlers(t)
	sess := registry.GetOrCreate(snowflake.ID(100))

	r := &bot.MockResponder{}
	i := commandInteraction("volume", []*discordgo.ApplicationCommandInteractionDataOption{
		intOption("percent", 150),
	})
	if err := h.HandleVolume(nil, i, r); err != nil {
		t.Fatalf("HandleVolume() error = %v", err)
	}
	if sess.Volume() != 150 {
		t.Errorf("Volume() = %d, want 150", sess.Volume())
	}
	if got := responseDescription(t, r); got != "Volume set to 150%." {
		t.Errorf("description = %q", got)
	}
}

func TestHandleVolume_WithoutSession(t *testing.T) {
	h, _ := newTestHandlers(t)

	r := &bot.MockResponder{}
	if err := h.HandleVolume(nil, commandInteraction("volume", nil), r); err != nil {
		t.Fatalf("HandleVolume() error = %v", err)
	}
	if got := responseDescription(t, r); got != "I'm not in a voice channel." {
		t.Errorf("description = %q", got)
	}
}

func TestHandleLoop_CyclesModes(t *testing.T) {
	h, registry := newTestHandlers(t)
	sess := registry.GetOrCreate(snowflake.ID(100))

	want := []domain.LoopMode{domain.LoopTrack, domain.LoopQueue, domain.LoopOff}
	for _, mode := range want {
		r := &bot.MockResponder{}
		if err := h.HandleLoop(nil, commandInteraction("loop", nil), r); err != nil {
			t.Fatalf("HandleLoop() error = %v", err)
		}
		if sess.LoopMode() != mode {
			t.Fatalf("LoopMode() = %v, want %v", sess.LoopMode(), mode)
		}
	}
}

func TestHandleLoop_ExplicitMode(t *testing.T) {
	h, registry := newTestHandlers(t)
	sess := registry.GetOrCreate(snowflake.ID(100))

	r := &bot.MockResponder{}
	i := commandInteraction("loop", []*discordgo.ApplicationCommandInteractionDataOption{
		stringOption("mode", "queue"),
	})
	if err := h.HandleLoop(nil, i, r); err != nil {
		t.Fatalf("HandleLoop() error = %v", err)
	}
	if sess.LoopMode() != domain.LoopQueue {
		t.Errorf("LoopMode() = %v, want queue", sess.LoopMode())
	}
}

func TestHandleEQ_SetsProfile(t *testing.T) {
	h, registry := newTestHandlers(t)
	sess := registry.GetOrCreate(snowflake.ID(100))

	r := &bot.MockResponder{}
	i := commandInteraction("eq", []*discordgo.ApplicationCommandInteractionDataOption{
		stringOption("profile", "hifi"),
	})
	if err := h.HandleEQ(nil, i, r); err != nil {
		t.Fatalf("HandleEQ() error = %v", err)
	}
	if sess.EQProfile() != domain.EQHiFi {
		t.Errorf("EQProfile() = %v, want hifi", sess.EQProfile())
	}
}

func TestHandleQueue_RemoveInvalidPosition(t *testing.T) {
	h, registry := newTestHandlers(t)
	registry.GetOrCreate(snowflake.ID(100))

	r := &bot.MockResponder{}
	i := commandInteraction("queue", []*discordgo.ApplicationCommandInteractionDataOption{
		{
			Name: "remove",
			Type: discordgo.ApplicationCommandOptionSubCommand,
			Options: []*discordgo.ApplicationCommandInteractionDataOption{
				intOption("position", 5),
			},
		},
	})
	if err := h.HandleQueue(nil, i, r); err != nil {
		t.Fatalf("HandleQueue() error = %v", err)
	}
	if got := responseDescription(t, r); got != "That queue position does not exist." {
		t.Errorf("description = %q", got)
	}
}

func TestHandleQueue_ListEmpty(t *testing.T) {
	h, registry := newTestHandlers(t)
	registry.GetOrCreate(snowflake.ID(100))

	r := &bot.MockResponder{}
	i := commandInteraction("queue", []*discordgo.ApplicationCommandInteractionDataOption{
		{Name: "list", Type: discordgo.ApplicationCommandOptionSubCommand},
	})
	if err := h.HandleQueue(nil, i, r); err != nil {
		t.Fatalf("HandleQueue() error = %v", err)
	}
	if got := responseDescription(t, r); !strings.Contains(got, "queue is empty") {
		t.Errorf("description = %q", got)
	}
}

func TestHandlePlay_RejectsEmptyQuery(t *testing.T) {
	h, _ := newTestHandlers(t)

	r := &bot.MockResponder{}
	i := commandInteraction("play", []*discordgo.ApplicationCommandInteractionDataOption{
		stringOption("query", "   "),
	})
	if err := h.HandlePlay(nil, i, r); err != nil {
		t.Fatalf("HandlePlay() error = %v", err)
	}
	if got := responseDescription(t, r); got != "Tell me what to play." {
		t.Errorf("description = %q", got)
	}
}

func TestFriendlyError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{session.ErrNotConnected, "I'm not in a voice channel."},
		{session.ErrNothingPlaying, "Nothing is playing right now."},
		{session.ErrAlreadyPaused, "Playback is already paused."},
		{session.ErrNotPaused, "Playback is not paused."},
		{session.ErrNoHistory, "There is no previous track to go back to."},
		{session.ErrInvalidPosition, "That queue position does not exist."},
		{session.ErrIngestBusy, "I'm still adding another playlist. Try again in a moment."},
		{session.ErrVolumeOutOfRange, "Volume must be between 0 and 200."},
	}

	for _, tt := range tests {
		if got := friendlyError(tt.err); got != tt.want {
			t.Errorf("friendlyError(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestTruncateTitle(t *testing.T) {
	long := strings.Repeat("a", maxQueueTitles+1)
	if got := truncateTitle(long); len([]rune(got)) != maxQueueTitles+3 {
		t.Errorf("truncateTitle() length = %d", len([]rune(got)))
	}
	if got := truncateTitle("short"); got != "short" {
		t.Errorf("truncateTitle(short) = %q", got)
	}
}
