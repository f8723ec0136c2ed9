package bot

import (
	"errors"
	"testing"

	"github.com/bwmarrin/discordgo"
)

func TestNewBot(t *testing.T) {
	cfg := &Config{
		DiscordToken: "test-token",
	}

	b := NewBot(cfg)

	if b == nil {
		t.Fatal("expected bot to be created, got nil")
	}
	if b.config != cfg {
		t.Error("expected config to be stored")
	}
}

func TestBot_InitModules_CallsInit(t *testing.T) {
	b := NewBot(&Config{DiscordToken: "test-token"})

	initCalled := false
	b.modules = []Module{&trackingStubModule{
		stubModule: stubModule{name: "tracking"},
		initCalled: &initCalled,
	}}

	if err := b.initModules(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !initCalled {
		t.Error("expected Init to be called")
	}
}

func TestBot_InitModules_ReturnsInitError(t *testing.T) {
	b := NewBot(&Config{DiscordToken: "test-token"})

	expectedErr := errors.New("init failed")
	b.modules = []Module{&stubModule{
		name:    "failing",
		initErr: expectedErr,
	}}

	err := b.initModules()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, expectedErr) {
		t.Errorf("expected error %v, got %v", expectedErr, err)
	}
}

func TestBot_BuildHandlerMap(t *testing.T) {
	b := NewBot(&Config{DiscordToken: "test-token"})

	handler := func(s *discordgo.Session, i *discordgo.InteractionCreate, r Responder) error {
		return nil
	}

	b.modules = []Module{&stubModule{
		name: "test",
		handlers: map[string]InteractionHandler{
			"play": handler,
		},
	}}

	b.buildHandlerMap()

	if _, ok := b.handlers["play"]; !ok {
		t.Error("expected play handler to be registered")
	}
}

func TestBot_BuildHandlerMap_MultipleModules(t *testing.T) {
	b := NewBot(&Config{DiscordToken: "test-token"})

	handler := func(s *discordgo.Session, i *discordgo.InteractionCreate, r Responder) error {
		return nil
	}

	b.modules = []Module{
		&stubModule{name: "mod1", handlers: map[string]InteractionHandler{"cmd1": handler}},
		&stubModule{name: "mod2", handlers: map[string]InteractionHandler{"cmd2": handler}},
	}

	b.buildHandlerMap()

	if len(b.handlers) != 2 {
		t.Errorf("expected 2 handlers, got %d", len(b.handlers))
	}
}

func TestBot_CollectCommands(t *testing.T) {
	b := NewBot(&Config{DiscordToken: "test-token"})

	cmd := &discordgo.ApplicationCommand{
		Name:        "play",
		Description: "Play command",
	}

	b.modules = []Module{&stubModule{
		name:     "test",
		commands: []*discordgo.ApplicationCommand{cmd},
	}}

	commands := b.collectCommands()

	if len(commands) != 1 {
		t.Fatalf("expected 1 command, got %d", len(commands))
	}
	if commands[0].Name != "play" {
		t.Errorf("expected command name %q, got %q", "play", commands[0].Name)
	}
}

// trackingStubModule is a stub that tracks if Init was called
type trackingStubModule struct {
	stubModule
	initCalled *bool
}

func (m *trackingStubModule) Init(deps ModuleDependencies) error {
	*m.initCalled = true
	return m.stubModule.Init(deps)
}
