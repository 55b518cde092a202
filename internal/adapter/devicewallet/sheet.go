package devicewallet

import (
	"errors"
	"fmt"

	"github.com/yourorg/wallet-checkout/internal/payment"
)

// Brand is a card brand the merchant accepts.
type Brand string

const (
	BrandVisa            Brand = "VISA"
	BrandMastercard      Brand = "MASTERCARD"
	BrandAmericanExpress Brand = "AMERICANEXPRESS"
	BrandDiscover        Brand = "DISCOVER"
)

// DefaultBrands is the accepted brand list used when none is configured.
var DefaultBrands = []Brand{BrandVisa, BrandMastercard, BrandAmericanExpress, BrandDiscover}

// AddressInPaymentSheet controls whether the sheet collects an address.
type AddressInPaymentSheet string

const (
	AddressDoNotShow       AddressInPaymentSheet = "DO_NOT_SHOW"
	AddressNeedBillingSend AddressInPaymentSheet = "NEED_BILLING_SEND_SHIPPING"
)

// Amount display formats.
const (
	FormatTotalPriceOnly       = "FORMAT_TOTAL_PRICE_ONLY"
	FormatTotalEstimatedAmount = "FORMAT_TOTAL_ESTIMATED_AMOUNT"
)

// Well-known control and item ids.
const (
	AmountControlID   = "AMOUNT_CONTROL_ID"
	ProductItemID     = "PRODUCT_ITEM_ID"
	ProductTaxID      = "PRODUCT_TAX_ID"
	ProductShippingID = "PRODUCT_SHIPPING_ID"
)

// AmountItem is one row of an amount box.
type AmountItem struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Price string `json:"price"`
	Extra string `json:"extra,omitempty"`
}

// AmountBoxControl shows the price breakdown on the custom sheet. Prices are
// decimal strings in the currency's scale.
type AmountBoxControl struct {
	ID           string       `json:"id"`
	CurrencyCode string       `json:"currency_code"`
	Items        []AmountItem `json:"items"`
	Total        string       `json:"total"`
	TotalFormat  string       `json:"total_format"`
}

// CustomSheet is the set of controls rendered by the wallet.
type CustomSheet struct {
	Controls []AmountBoxControl `json:"controls"`
}

// CustomSheetPaymentInfo is the transaction sent to the device wallet.
type CustomSheetPaymentInfo struct {
	MerchantID            string                `json:"merchant_id"`
	MerchantName          string                `json:"merchant_name"`
	OrderNumber           string                `json:"order_number"`
	AddressInPaymentSheet AddressInPaymentSheet `json:"address_in_payment_sheet"`
	AllowedCardBrands     []Brand               `json:"allowed_card_brands"`
	CardHolderNameEnabled bool                  `json:"card_holder_name_enabled"`
	RecurringEnabled      bool                  `json:"recurring_enabled"`
	CustomSheet           CustomSheet           `json:"custom_sheet"`
	ExtraPaymentInfo      map[string]string     `json:"extra_payment_info,omitempty"`
}

var (
	errMissingMerchant = errors.New("devicewallet: merchant id and name are required")
	errMissingOrder    = errors.New("devicewallet: order number is required")
	errEmptySheet      = errors.New("devicewallet: custom sheet has no controls")
)

// Builder assembles a CustomSheetPaymentInfo.
type Builder struct {
	info CustomSheetPaymentInfo
}

func NewBuilder() *Builder {
	return &Builder{info: CustomSheetPaymentInfo{AddressInPaymentSheet: AddressDoNotShow}}
}

func (b *Builder) SetMerchantID(id string) *Builder     { b.info.MerchantID = id; return b }
func (b *Builder) SetMerchantName(name string) *Builder { b.info.MerchantName = name; return b }
func (b *Builder) SetOrderNumber(n string) *Builder     { b.info.OrderNumber = n; return b }

func (b *Builder) SetAddressInPaymentSheet(a AddressInPaymentSheet) *Builder {
	b.info.AddressInPaymentSheet = a
	return b
}

func (b *Builder) SetAllowedCardBrands(brands []Brand) *Builder {
	b.info.AllowedCardBrands = append([]Brand(nil), brands...)
	return b
}

func (b *Builder) SetCardHolderNameEnabled(v bool) *Builder { b.info.CardHolderNameEnabled = v; return b }
func (b *Builder) SetRecurringEnabled(v bool) *Builder      { b.info.RecurringEnabled = v; return b }
func (b *Builder) SetCustomSheet(s CustomSheet) *Builder    { b.info.CustomSheet = s; return b }

func (b *Builder) SetExtraPaymentInfo(extra map[string]string) *Builder {
	b.info.ExtraPaymentInfo = extra
	return b
}

// Build validates and returns the payment info.
func (b *Builder) Build() (CustomSheetPaymentInfo, error) {
	if b.info.MerchantID == "" || b.info.MerchantName == "" {
		return CustomSheetPaymentInfo{}, errMissingMerchant
	}
	if b.info.OrderNumber == "" {
		return CustomSheetPaymentInfo{}, errMissingOrder
	}
	if len(b.info.CustomSheet.Controls) == 0 {
		return CustomSheetPaymentInfo{}, errEmptySheet
	}
	if len(b.info.AllowedCardBrands) == 0 {
		b.info.AllowedCardBrands = append([]Brand(nil), DefaultBrands...)
	}
	return b.info, nil
}

// AmountControlFor renders the descriptor's amount breakdown. Without line
// items the whole amount is shown as a single product row.
func AmountControlFor(d payment.Descriptor) (AmountBoxControl, error) {
	items := d.LineItems()
	if len(items) == 0 {
		items = []payment.LineItem{{ID: ProductItemID, Label: "Item", Amount: d.Amount()}}
	}

	control := AmountBoxControl{
		ID:           AmountControlID,
		CurrencyCode: d.Currency(),
		TotalFormat:  FormatTotalPriceOnly,
	}
	for _, it := range items {
		price, err := payment.FormatMinor(it.Amount, d.Currency())
		if err != nil {
			return AmountBoxControl{}, fmt.Errorf("devicewallet: item %s: %w", it.ID, err)
		}
		control.Items = append(control.Items, AmountItem{ID: it.ID, Title: it.Label, Price: price})
	}
	total, err := payment.FormatMinor(d.Amount(), d.Currency())
	if err != nil {
		return AmountBoxControl{}, fmt.Errorf("devicewallet: total: %w", err)
	}
	control.Total = total
	return control, nil
}
