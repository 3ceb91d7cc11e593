package dingtalk

import (
	"context"
	"fmt"

	"github.com/open-dingtalk/dingtalk-stream-sdk-go/client"
	"github.com/open-dingtalk/dingtalk-stream-sdk-go/payload"
	"github.com/open-dingtalk/dingtalk-stream-sdk-go/utils"
)

// sdkStreamer adapts the vendor stream SDK to the Streamer seam. The SDK owns
// the websocket endpoint discovery, keepalive and reconnects.
type sdkStreamer struct {
	cli *client.StreamClient
}

// NewSDKStreamer builds the production stream connection for one robot.
func NewSDKStreamer(id RobotIdentity, handle func(ctx context.Context, f EventFrame) AckStatus) (Streamer, error) {
	if id.ClientID == "" || id.ClientSecret == "" {
		return nil, fmt.Errorf("dingtalk: missing client credentials")
	}

	frameHandler := func(ctx context.Context, df *payload.DataFrame) (*payload.DataFrameResponse, error) {
		frame := EventFrame{
			MessageID: df.Headers["messageId"],
			Data:      []byte(df.Data),
		}
		if handle(ctx, frame) == AckFailure {
			return nil, fmt.Errorf("dingtalk: event %s not processed", frame.MessageID)
		}
		return payload.NewSuccessDataFrameResponse(), nil
	}

	cli := client.NewStreamClient(
		client.WithAppCredential(client.NewAppCredentialConfig(id.ClientID, id.ClientSecret)),
		client.WithAutoReconnect(true),
		client.WithSubscription(utils.SubscriptionTypeKCallback, payload.BotMessageCallbackTopic, frameHandler),
	)
	return &sdkStreamer{cli: cli}, nil
}

func (s *sdkStreamer) Start(ctx context.Context) error {
	return s.cli.Start(ctx)
}

func (s *sdkStreamer) Close() {
	s.cli.Close()
}
