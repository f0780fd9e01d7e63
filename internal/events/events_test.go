package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/sudo-init-do/greenvault/internal/ledger"
)

type published struct {
	eventType string
	payload   []byte
	key       string
}

type capturePublisher struct {
	got []published
	err error
}

func (c *capturePublisher) Publish(_ context.Context, eventType string, payload []byte, key string) error {
	if c.err != nil {
		return c.err
	}
	c.got = append(c.got, published{eventType: eventType, payload: payload, key: key})
	return nil
}

func TestForwarderPublishesEnvelopeKeyedByAccount(t *testing.T) {
	pub := &capturePublisher{}
	f := NewForwarder(pub, "greenvault")
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	entry := ledger.Transaction{ID: "tx-1", AccountID: "acct-1", Type: ledger.TypeDeposit, Amount: 500, Status: ledger.TxCompleted}

	err := f.Observe(context.Background(), ledger.Event{
		ID:          "evt-1",
		Type:        ledger.EventFundsAdded,
		AccountID:   "acct-1",
		OccurredAt:  at,
		Wallet:      ledger.Balance{Balance: 500, AvailableBalance: 500},
		Transaction: &entry,
	})
	require.NoError(t, err)
	require.Len(t, pub.got, 1)
	require.Equal(t, "wallet.funds_added", pub.got[0].eventType)
	require.Equal(t, "acct-1", pub.got[0].key)

	var env Envelope
	require.NoError(t, json.Unmarshal(pub.got[0].payload, &env))
	require.Equal(t, "evt-1", env.EventID)
	require.Equal(t, "greenvault", env.SourceService)
	require.Equal(t, "1.0", env.SchemaVersion)
	require.Equal(t, int64(500), env.Data.Wallet.Balance)
	require.NotNil(t, env.Data.Transaction)
	require.Equal(t, "tx-1", env.Data.Transaction.ID)
}

func TestForwarderWrapsPublishFailure(t *testing.T) {
	boom := errors.New("broker down")
	f := NewForwarder(&capturePublisher{err: boom}, "greenvault")

	err := f.Observe(context.Background(), ledger.Event{Type: ledger.EventWithdrawalCompleted, AccountID: "acct"})
	require.ErrorIs(t, err, boom)
	require.Contains(t, err.Error(), "wallet.withdrawal_completed")
}

func TestKafkaPublisherTopics(t *testing.T) {
	_, err := NewKafkaPublisher(nil, "greenvault")
	require.Error(t, err)

	p, err := NewKafkaPublisher([]string{"localhost:9092"}, "greenvault.")
	require.NoError(t, err)
	defer p.Close()
	require.Equal(t, "greenvault.wallet.fee_charged", p.Topic("wallet.fee_charged"))

	bare, err := NewKafkaPublisher([]string{"localhost:9092"}, "")
	require.NoError(t, err)
	defer bare.Close()
	require.Equal(t, "wallet.fee_charged", bare.Topic("wallet.fee_charged"))
}

func TestLoggingPublisherAcceptsEverything(t *testing.T) {
	p := NewLoggingPublisher(nil)
	require.NoError(t, p.Publish(context.Background(), "wallet.funds_added", []byte("{}"), "acct"))
}
