package infra

import "context"

type GatewayClientInterface interface {
	CreateOrder(ctx context.Context, in GatewayOrderRequest) (*GatewayOrder, error)
	KeyID() string
}

var _ GatewayClientInterface = (*GatewayClient)(nil)
