package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogNotifierWritesStructuredEntry(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	n := NewLogNotifier(zap.New(core))

	err := n.Notify(context.Background(), Message{
		Kind:         KindApprovalRequested,
		OrgID:        "org-1",
		CommitmentID: "c-1",
		To:           Recipient{Email: "dana@client.test"},
		URL:          "https://app.test/approve/abc",
	})
	require.NoError(t, err)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "APPROVAL_REQUESTED", fields["kind"])
	assert.Equal(t, "dana@client.test", fields["to_email"])
	assert.Equal(t, "https://app.test/approve/abc", fields["url"])
}
