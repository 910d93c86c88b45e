package notify

import (
	"context"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
)

type fakeConfirm struct {
	acked bool
	err   error
}

func (f fakeConfirm) WaitContext(context.Context) (bool, error) { return f.acked, f.err }

func TestAwaitConfirm(t *testing.T) {
	ctxErr := context.DeadlineExceeded

	tests := []struct {
		name     string
		confirm  fakeConfirm
		returned *amqp.Return
		want     error
	}{
		{name: "acked", confirm: fakeConfirm{acked: true}},
		{name: "nacked", confirm: fakeConfirm{acked: false}, want: ErrNotConfirmed},
		{name: "wait fails", confirm: fakeConfirm{err: ctxErr}, want: ctxErr},
		{
			name:     "acked but returned",
			confirm:  fakeConfirm{acked: true},
			returned: &amqp.Return{ReplyCode: 312, ReplyText: "NO_ROUTE", RoutingKey: "notification.crawl"},
			want:     ErrUnroutable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			returns := make(chan amqp.Return, 1)
			if tt.returned != nil {
				returns <- *tt.returned
			}
			err := awaitConfirm(context.Background(), tt.confirm, returns)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestAwaitConfirmClosedReturns(t *testing.T) {
	returns := make(chan amqp.Return)
	close(returns)
	assert.NoError(t, awaitConfirm(context.Background(), fakeConfirm{acked: true}, returns))
}
