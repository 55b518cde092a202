package genericwallet

import (
	"fmt"

	"github.com/yourorg/wallet-checkout/internal/payment"
)

// PaymentDataRequest is the payment sheet request understood by the generic
// wallet (API version 2.0).
type PaymentDataRequest struct {
	APIVersion            int             `json:"apiVersion"`
	APIVersionMinor       int             `json:"apiVersionMinor"`
	AllowedPaymentMethods []PaymentMethod `json:"allowedPaymentMethods"`
	TransactionInfo       TransactionInfo `json:"transactionInfo"`
	MerchantInfo          MerchantInfo    `json:"merchantInfo"`
}

type PaymentMethod struct {
	Type                      string                    `json:"type"`
	Parameters                CardParameters            `json:"parameters"`
	TokenizationSpecification TokenizationSpecification `json:"tokenizationSpecification"`
}

type CardParameters struct {
	AllowedAuthMethods   []string `json:"allowedAuthMethods"`
	AllowedCardNetworks  []string `json:"allowedCardNetworks"`
	BillingAddressNeeded bool     `json:"billingAddressRequired,omitempty"`
}

type TokenizationSpecification struct {
	Type       string            `json:"type"`
	Parameters map[string]string `json:"parameters"`
}

type TransactionInfo struct {
	TotalPrice       string `json:"totalPrice"`
	TotalPriceStatus string `json:"totalPriceStatus"`
	CountryCode      string `json:"countryCode"`
	CurrencyCode     string `json:"currencyCode"`
	TransactionID    string `json:"transactionId,omitempty"`
}

type MerchantInfo struct {
	MerchantName string `json:"merchantName"`
}

var (
	defaultAuthMethods  = []string{"PAN_ONLY", "CRYPTOGRAM_3DS"}
	defaultCardNetworks = []string{"AMEX", "DISCOVER", "JCB", "MASTERCARD", "VISA"}
)

// BuildPaymentDataRequest turns a descriptor into the wallet's request.
func BuildPaymentDataRequest(m Merchant, d payment.Descriptor) (PaymentDataRequest, error) {
	if d.IsZero() {
		return PaymentDataRequest{}, fmt.Errorf("genericwallet: empty descriptor")
	}
	total, err := payment.FormatMinor(d.Amount(), d.Currency())
	if err != nil {
		return PaymentDataRequest{}, fmt.Errorf("genericwallet: format total: %w", err)
	}

	authMethods := m.AllowedAuthMethods
	if len(authMethods) == 0 {
		authMethods = defaultAuthMethods
	}
	networks := m.AllowedCardNetworks
	if len(networks) == 0 {
		networks = defaultCardNetworks
	}

	return PaymentDataRequest{
		APIVersion:      2,
		APIVersionMinor: 0,
		AllowedPaymentMethods: []PaymentMethod{{
			Type: "CARD",
			Parameters: CardParameters{
				AllowedAuthMethods:  authMethods,
				AllowedCardNetworks: networks,
			},
			TokenizationSpecification: TokenizationSpecification{
				Type: "PAYMENT_GATEWAY",
				Parameters: map[string]string{
					"gateway":           m.Gateway,
					"gatewayMerchantId": m.GatewayMerchantID,
				},
			},
		}},
		TransactionInfo: TransactionInfo{
			TotalPrice:       total,
			TotalPriceStatus: "FINAL",
			CountryCode:      m.CountryCode,
			CurrencyCode:     d.Currency(),
			TransactionID:    d.OrderReference(),
		},
		MerchantInfo: MerchantInfo{MerchantName: m.Name},
	}, nil
}
