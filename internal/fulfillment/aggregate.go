package fulfillment

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MonetaryAmount is an amount as entered or stored, with its currency code.
type MonetaryAmount struct {
	Amount   string
	Currency string
}

// NegativeTotalPolicy decides what happens when discount exceeds subtotal plus tax.
type NegativeTotalPolicy string

const (
	NegativeTotalAllow  NegativeTotalPolicy = "allow"
	NegativeTotalReject NegativeTotalPolicy = "reject"
)

// AggregatorPolicy configures amount parsing and grand total validation.
type AggregatorPolicy struct {
	// StrictAmounts rejects unparseable amounts instead of counting them as zero.
	StrictAmounts  bool
	NegativeTotals NegativeTotalPolicy
}

// Aggregator computes order and invoice totals under a fixed policy.
type Aggregator struct {
	policy AggregatorPolicy
}

func NewAggregator(policy AggregatorPolicy) *Aggregator {
	if policy.NegativeTotals == "" {
		policy.NegativeTotals = NegativeTotalAllow
	}
	return &Aggregator{policy: policy}
}

func (a *Aggregator) Policy() AggregatorPolicy {
	return a.policy
}

// Subtotal buckets amounts by currency using the configured parsing policy.
func (a *Aggregator) Subtotal(amounts map[uuid.UUID]MonetaryAmount) (map[string]decimal.Decimal, error) {
	if a.policy.StrictAmounts {
		return ComputeSubtotalStrict(amounts)
	}
	return ComputeSubtotal(amounts), nil
}

// GrandTotal applies ComputeGrandTotal and the negative total policy.
func (a *Aggregator) GrandTotal(subtotal, discount, tax decimal.Decimal) (decimal.Decimal, error) {
	total := ComputeGrandTotal(subtotal, discount, tax)
	if total.IsNegative() && a.policy.NegativeTotals == NegativeTotalReject {
		return total, fmt.Errorf("%w: %s - %s + %s = %s", ErrNegativeGrandTotal, subtotal, discount, tax, total)
	}
	return total, nil
}

// NormalizeCurrency upper-cases and trims a currency code.
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ParseAmount parses a user entered amount. A single comma is accepted as the
// decimal separator when no dot is present ("1500,50").
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if !strings.Contains(s, ".") && strings.Count(s, ",") == 1 {
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	return d, nil
}

// ComputeSubtotal sums amounts per currency. Unparseable amounts count as
// zero; their currency still gets a bucket.
func ComputeSubtotal(amounts map[uuid.UUID]MonetaryAmount) map[string]decimal.Decimal {
	totals := make(map[string]decimal.Decimal)
	for _, m := range amounts {
		cur := NormalizeCurrency(m.Currency)
		d, err := ParseAmount(m.Amount)
		if err != nil {
			d = decimal.Zero
		}
		totals[cur] = totals[cur].Add(d)
	}
	return totals
}

// ComputeSubtotalStrict is ComputeSubtotal that fails on the first
// unparseable amount.
func ComputeSubtotalStrict(amounts map[uuid.UUID]MonetaryAmount) (map[string]decimal.Decimal, error) {
	totals := make(map[string]decimal.Decimal)
	for id, m := range amounts {
		d, err := ParseAmount(m.Amount)
		if err != nil {
			return nil, fmt.Errorf("order %s: %w", id, err)
		}
		cur := NormalizeCurrency(m.Currency)
		totals[cur] = totals[cur].Add(d)
	}
	return totals, nil
}

// ComputeGrandTotal is subtotal - discount + tax, with no clamping.
func ComputeGrandTotal(subtotal, discount, tax decimal.Decimal) decimal.Decimal {
	return subtotal.Sub(discount).Add(tax)
}

// ValidateCurrencyConsistency reports whether subtotal, discount, tax and
// grand total are expressed in the same currency. Codes are compared after
// NormalizeCurrency; nothing is converted.
func ValidateCurrencyConsistency(subtotal, discount, tax, grandTotal string) bool {
	c := NormalizeCurrency(subtotal)
	return NormalizeCurrency(discount) == c &&
		NormalizeCurrency(tax) == c &&
		NormalizeCurrency(grandTotal) == c
}

// InvoiceRef is the grouping view of an invoice.
type InvoiceRef struct {
	InvoiceID uuid.UUID
	GroupID   *uuid.UUID
	PhotoURLs []string
}

// InvoiceBatch is a set of invoices billed together.
type InvoiceBatch struct {
	GroupID    *uuid.UUID
	InvoiceIDs []uuid.UUID
	PhotoURLs  []string
}

// GroupByPhotoOrGroupID partitions invoices into batches. An explicit group
// id wins; invoices without one share a batch when their non-empty photo URL
// sets are identical regardless of order. Invoices without photos are always
// alone. Batches keep the order in which their first invoice appears.
func GroupByPhotoOrGroupID(invoices []InvoiceRef) []InvoiceBatch {
	var batches []InvoiceBatch
	byGroup := make(map[uuid.UUID]int)
	byPhotos := make(map[string]int)

	for _, inv := range invoices {
		if inv.GroupID != nil {
			if idx, ok := byGroup[*inv.GroupID]; ok {
				batches[idx].InvoiceIDs = append(batches[idx].InvoiceIDs, inv.InvoiceID)
				continue
			}
			gid := *inv.GroupID
			byGroup[gid] = len(batches)
			batches = append(batches, InvoiceBatch{GroupID: &gid, InvoiceIDs: []uuid.UUID{inv.InvoiceID}})
			continue
		}

		urls := photoSet(inv.PhotoURLs)
		if len(urls) == 0 {
			batches = append(batches, InvoiceBatch{InvoiceIDs: []uuid.UUID{inv.InvoiceID}})
			continue
		}

		key := strings.Join(urls, "\n")
		if idx, ok := byPhotos[key]; ok {
			batches[idx].InvoiceIDs = append(batches[idx].InvoiceIDs, inv.InvoiceID)
			continue
		}
		byPhotos[key] = len(batches)
		batches = append(batches, InvoiceBatch{InvoiceIDs: []uuid.UUID{inv.InvoiceID}, PhotoURLs: urls})
	}

	return batches
}

// photoSet returns the sorted, de-duplicated, non-empty URLs.
func photoSet(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}
