package kafkasink

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/ethscraper/internal/types"
	"github.com/ava-labs/ethscraper/pkg/kafka"
)

type mockProducer struct {
	mock.Mock
}

func (m *mockProducer) Produce(ctx context.Context, msg kafka.Msg) error {
	return m.Called(ctx, msg).Error(0)
}

func (m *mockProducer) Close(timeout time.Duration) {
	m.Called(timeout)
}

func TestSink_Emit(t *testing.T) {
	t.Parallel()

	transfer := &types.ERC20Transfer{
		TokenAddress:    common.HexToAddress("0xdac17f958d2ee523a2206206994597c13d831ec7"),
		Amount:          uint256.NewInt(250),
		TransactionHash: common.HexToHash("0x2f1c5c2b44f771e942a8506148e256f94f1a464babc938ae0690c6e34cd79190"),
		LogIndex:        7,
	}

	p := new(mockProducer)
	p.On("Produce", mock.Anything, mock.MatchedBy(func(msg kafka.Msg) bool {
		var body map[string]any
		if err := json.Unmarshal(msg.Value, &body); err != nil {
			return false
		}
		return msg.Topic == "mainnet.erc20_transfer" &&
			string(msg.Key) == "0x2f1c5c2b44f771e942a8506148e256f94f1a464babc938ae0690c6e34cd79190:7" &&
			msg.Headers[HeaderRecordKind] == "erc20_transfer" &&
			body["type"] == "erc20_transfer" &&
			body["value"] == "250"
	})).Return(nil).Once()

	s := New(p, kafka.ProducerConfig{TopicPrefix: "mainnet"})
	require.NoError(t, s.Emit(t.Context(), transfer))
	p.AssertExpectations(t)
}

func TestSink_EmitError(t *testing.T) {
	t.Parallel()

	boom := errors.New("delivery failed: Local: Message timed out")
	p := new(mockProducer)
	p.On("Produce", mock.Anything, mock.Anything).Return(boom)

	s := New(p, kafka.ProducerConfig{TopicPrefix: "ethscraper"})
	err := s.Emit(t.Context(), &types.RPCError{Method: "eth_getBlockByNumber", Subject: "0x1"})
	require.ErrorIs(t, err, boom)
}

func TestSink_Close(t *testing.T) {
	t.Parallel()

	p := new(mockProducer)
	p.On("Close", kafka.DefaultFlushTimeout).Return().Once()
	require.NoError(t, New(p, kafka.ProducerConfig{}).Close(t.Context()))

	p2 := new(mockProducer)
	p2.On("Close", 2*time.Second).Return().Once()
	require.NoError(t, New(p2, kafka.ProducerConfig{FlushTimeout: 2 * time.Second}).Close(t.Context()))

	p.AssertExpectations(t)
	p2.AssertExpectations(t)
	assert.Equal(t, "block", kafka.ProducerConfig{}.Topic("block"))
}
