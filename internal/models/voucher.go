// Package models - Voucher group data and denomination breakdown.
// This file mirrors the public CDC voucher API response and turns it into
// per-category summaries of unused and redeemed vouchers.
package models

import (
	"maps"
	"slices"
	"strings"
	"time"
)

// Voucher categories reported by the CDC API.
const (
	VoucherTypeHeartland   = "heartland"
	VoucherTypeSupermarket = "supermarket"
	VoucherTypeClimate     = "climate"
)

// Voucher states
const (
	VoucherStateUnused   = "unused"
	VoucherStateRedeemed = "redeemed"
)

// ClimateCampaignCategory marks climate voucher campaigns. Every voucher in
// such a campaign counts as a climate voucher regardless of its type field.
const ClimateCampaignCategory = "nea_cfhp"

// ValidityDateLayout is used when presenting a campaign's validity end.
const ValidityDateLayout = "2006-01-02"

// VoucherData is the body of GET /v1/public/vouchers/groups/{id}.
type VoucherData struct {
	Campaign Campaign         `json:"campaign"`
	Data     VoucherGroupData `json:"data"`
}

type Campaign struct {
	Name            string           `json:"name"`
	Description     string           `json:"description"`
	ValidityEnd     string           `json:"validity_end"`
	Category        string           `json:"category"`
	DefaultVouchers []DefaultVoucher `json:"default_vouchers"`
}

type DefaultVoucher struct {
	Value    int    `json:"value"`
	Quantity int    `json:"quantity"`
	Type     string `json:"type"`
}

type VoucherGroupData struct {
	Vouchers []Voucher `json:"vouchers"`
}

// Voucher is a single voucher in a group. Type is empty when the API
// returns null.
type Voucher struct {
	ID                    string  `json:"id"`
	State                 string  `json:"state"`
	VoucherValue          int     `json:"voucher_value"`
	Type                  string  `json:"type"`
	MerchantName          *string `json:"merchant_name"`
	LastRedeemedTimestamp *string `json:"last_redeemed_timestamp"`
}

// DenominationCount tallies vouchers of one face value.
type DenominationCount struct {
	Total    int `json:"total"`
	Unused   int `json:"unused"`
	Redeemed int `json:"redeemed"`
}

// Breakdown groups one voucher category by face value.
type Breakdown struct {
	Denominations map[int]DenominationCount `json:"denominations"`
	UnusedValue   int                       `json:"unused_value"`
	RedeemedValue int                       `json:"redeemed_value"`
	TotalValue    int                       `json:"total_value"`
}

// Values returns the face values present, ascending.
func (b *Breakdown) Values() []int {
	return slices.Sorted(maps.Keys(b.Denominations))
}

// IsEmpty reports whether the category has no vouchers.
func (b *Breakdown) IsEmpty() bool {
	return len(b.Denominations) == 0
}

// VoucherSummary is the processed view of a voucher group.
type VoucherSummary struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	ValidityEnd string    `json:"validity_end"`
	Heartland   Breakdown `json:"heartland"`
	Supermarket Breakdown `json:"supermarket"`
	Climate     Breakdown `json:"climate"`
}

// ProcessVoucherData builds the per-category breakdown. Heartland and
// supermarket vouchers are selected by type; the climate category holds every
// voucher when the campaign is a climate campaign and nothing otherwise.
func ProcessVoucherData(data *VoucherData) *VoucherSummary {
	var heartland, supermarket, climate []Voucher
	for _, v := range data.Data.Vouchers {
		switch v.Type {
		case VoucherTypeHeartland:
			heartland = append(heartland, v)
		case VoucherTypeSupermarket:
			supermarket = append(supermarket, v)
		}
	}
	if data.Campaign.Category == ClimateCampaignCategory {
		climate = data.Data.Vouchers
	}

	return &VoucherSummary{
		Name:        data.Campaign.Name,
		Description: data.Campaign.Description,
		ValidityEnd: formatValidityEnd(data.Campaign.ValidityEnd),
		Heartland:   buildBreakdown(heartland),
		Supermarket: buildBreakdown(supermarket),
		Climate:     buildBreakdown(climate),
	}
}

func buildBreakdown(vouchers []Voucher) Breakdown {
	b := Breakdown{Denominations: make(map[int]DenominationCount)}

	for _, v := range vouchers {
		count := b.Denominations[v.VoucherValue]
		count.Total++
		b.TotalValue += v.VoucherValue

		switch strings.TrimSpace(v.State) {
		case VoucherStateUnused:
			count.Unused++
			b.UnusedValue += v.VoucherValue
		case VoucherStateRedeemed:
			count.Redeemed++
			b.RedeemedValue += v.VoucherValue
		}

		b.Denominations[v.VoucherValue] = count
	}

	return b
}

// formatValidityEnd renders an RFC3339 timestamp as a date. Values that do
// not parse are returned unchanged.
func formatValidityEnd(raw string) string {
	for _, layout := range []string{time.RFC3339Nano, ValidityDateLayout} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(ValidityDateLayout)
		}
	}
	return raw
}
