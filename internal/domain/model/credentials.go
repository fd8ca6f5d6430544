package model

import "errors"

// GatewayCredentials identify the merchant at the gateway. Immutable after construction.
type GatewayCredentials struct {
	walletID    string
	apiPassword string
}

func NewGatewayCredentials(walletID, apiPassword string) (GatewayCredentials, error) {
	if walletID == "" {
		return GatewayCredentials{}, errors.New("wallet id empty")
	}
	if apiPassword == "" {
		return GatewayCredentials{}, errors.New("api password empty")
	}
	return GatewayCredentials{walletID: walletID, apiPassword: apiPassword}, nil
}

func (c GatewayCredentials) WalletID() string    { return c.walletID }
func (c GatewayCredentials) APIPassword() string { return c.apiPassword }
