package relay

import "testing"

func TestFromBot(t *testing.T) {
	if !(&Event{Type: "message", BotID: "B123"}).FromBot() {
		t.Error("event with bot_id should be bot-authored")
	}
	if !(&Event{Type: "message", Subtype: "bot_message"}).FromBot() {
		t.Error("event with bot_message subtype should be bot-authored")
	}
	if (&Event{Type: "message", User: "U1"}).FromBot() {
		t.Error("plain user message should not be bot-authored")
	}
}

func TestWantsReply(t *testing.T) {
	cases := []struct {
		name string
		ev   Event
		want bool
	}{
		{"app mention", Event{Type: "app_mention", Channel: "C1"}, true},
		{"direct message", Event{Type: "message", ChannelType: "im"}, true},
		{"channel message without mention", Event{Type: "message", ChannelType: "channel"}, false},
		{"reaction", Event{Type: "reaction_added"}, false},
		{"member joined", Event{Type: "member_joined_channel"}, false},
	}
	for _, tc := range cases {
		if got := tc.ev.WantsReply(); got != tc.want {
			t.Errorf("%s: WantsReply() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestNormalizeText(t *testing.T) {
	cases := map[string]string{
		"<@U0BOT> hello":              "hello",
		"  hello  ":                   "hello",
		"<@U0BOT> what is <@U0OTHER>": "what is",
		"no mentions here":            "no mentions here",
		"<@U0BOT>":                    "",
	}
	for in, want := range cases {
		if got := NormalizeText(in); got != want {
			t.Errorf("NormalizeText(%q) = %q, want %q", in, got, want)
		}
	}
}
