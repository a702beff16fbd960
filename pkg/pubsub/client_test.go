package pubsub

import (
	"testing"

	"github.com/lotusbook/payments-backend/pkg/config"
)

func TestTopicResourceName(t *testing.T) {
	c := &Client{projectID: "lotus-prod"}
	cases := []struct {
		in   string
		want string
	}{
		{in: "lotus-ledger-events", want: "projects/lotus-prod/topics/lotus-ledger-events"},
		{in: " projects/other/topics/t ", want: "projects/other/topics/t"},
		{in: "  ", want: ""},
	}
	for _, tc := range cases {
		if got := c.topicResourceName(tc.in); got != tc.want {
			t.Fatalf("topicResourceName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
	if got := (&Client{}).topicResourceName("x"); got != "" {
		t.Fatalf("expected empty name without project, got %q", got)
	}
}

func TestTopicNamesSkipsBlank(t *testing.T) {
	names := topicNames(config.PubSubConfig{NotificationTopic: "n", LedgerTopic: " "})
	if len(names) != 1 || names[0] != "n" {
		t.Fatalf("unexpected topics %v", names)
	}
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	if c.Publisher("x") != nil {
		t.Fatalf("expected nil publisher")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
