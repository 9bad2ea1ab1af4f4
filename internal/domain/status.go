package domain

import (
	"context"
	"fmt"
	"strings"
)

// RequestStatus is the lifecycle status of a purchase request.
type RequestStatus string

const (
	RequestStatusPending             RequestStatus = "pending"
	RequestStatusAwaitingOffers      RequestStatus = "awaiting_offers"
	RequestStatusSiteManagerApproved RequestStatus = "site_manager_approved"
	RequestStatusOrdered             RequestStatus = "ordered"
	RequestStatusShipped             RequestStatus = "shipped"
	RequestStatusPartiallyShipped    RequestStatus = "partially_shipped"
	RequestStatusDepotUnavailable    RequestStatus = "depot_unavailable"
	RequestStatusSentToPurchasing    RequestStatus = "sent_to_purchasing"
	RequestStatusDelivered           RequestStatus = "delivered"
	RequestStatusRejected            RequestStatus = "rejected"
)

// AllRequestStatuses lists the statuses in workflow order.
var AllRequestStatuses = []RequestStatus{
	RequestStatusPending,
	RequestStatusAwaitingOffers,
	RequestStatusSiteManagerApproved,
	RequestStatusOrdered,
	RequestStatusPartiallyShipped,
	RequestStatusShipped,
	RequestStatusDepotUnavailable,
	RequestStatusSentToPurchasing,
	RequestStatusDelivered,
	RequestStatusRejected,
}

// IsValid checks if the RequestStatus is a valid enum value
func (s RequestStatus) IsValid() bool {
	for _, known := range AllRequestStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal reports statuses that the reconciler never moves away from.
func (s RequestStatus) IsTerminal() bool {
	return s == RequestStatusDelivered || s == RequestStatusRejected
}

// Locale selects the language of status display labels.
type Locale string

const (
	LocaleEnglish Locale = "en"
	LocaleTurkish Locale = "tr"
)

var statusLabels = map[Locale]map[RequestStatus]string{
	LocaleEnglish: {
		RequestStatusPending:             "Pending",
		RequestStatusAwaitingOffers:      "Awaiting offers",
		RequestStatusSiteManagerApproved: "Approved by site manager",
		RequestStatusOrdered:             "Ordered",
		RequestStatusShipped:             "Shipped",
		RequestStatusPartiallyShipped:    "Partially shipped",
		RequestStatusDepotUnavailable:    "Not available in depot",
		RequestStatusSentToPurchasing:    "Sent to purchasing",
		RequestStatusDelivered:           "Delivered",
		RequestStatusRejected:            "Rejected",
	},
	LocaleTurkish: {
		RequestStatusPending:             "Beklemede",
		RequestStatusAwaitingOffers:      "Teklif bekleniyor",
		RequestStatusSiteManagerApproved: "Şantiye şefi onayladı",
		RequestStatusOrdered:             "Sipariş verildi",
		RequestStatusShipped:             "Gönderildi",
		RequestStatusPartiallyShipped:    "Kısmen gönderildi",
		RequestStatusDepotUnavailable:    "Depoda yok",
		RequestStatusSentToPurchasing:    "Satın almaya gönderildi",
		RequestStatusDelivered:           "Teslim edildi",
		RequestStatusRejected:            "Reddedildi",
	},
}

// ParseLocale maps an Accept-Language style value to a supported locale,
// defaulting to Turkish.
func ParseLocale(s string) Locale {
	s = strings.ToLower(strings.TrimSpace(s))
	if strings.HasPrefix(s, "en") {
		return LocaleEnglish
	}
	return LocaleTurkish
}

type localeKey struct{}

// ContextWithLocale stores the display locale of the current request.
func ContextWithLocale(ctx context.Context, locale Locale) context.Context {
	return context.WithValue(ctx, localeKey{}, locale)
}

// LocaleFromContext returns the request locale, or Turkish when none was set.
func LocaleFromContext(ctx context.Context) Locale {
	if l, ok := ctx.Value(localeKey{}).(Locale); ok {
		return l
	}
	return LocaleTurkish
}

// Label returns the display string of the status. Unknown statuses render as
// their raw value.
func (s RequestStatus) Label(locale Locale) string {
	labels, ok := statusLabels[locale]
	if !ok {
		labels = statusLabels[LocaleTurkish]
	}
	if label, ok := labels[s]; ok {
		return label
	}
	return string(s)
}

// legacyStatusAliases covers status literals written by older clients.
var legacyStatusAliases = map[string]RequestStatus{
	"partially_delivered": RequestStatusPartiallyShipped,
	"partial":             RequestStatusPartiallyShipped,
	"approved":            RequestStatusSiteManagerApproved,
	"not_in_depot":        RequestStatusDepotUnavailable,
	"escalated":           RequestStatusSentToPurchasing,
	"completed":           RequestStatusDelivered,
}

// ParseRequestStatus is the single entry point from stored or client supplied
// strings into the status enum. It accepts canonical values, legacy aliases and
// display labels in any supported locale.
func ParseRequestStatus(raw string) (RequestStatus, error) {
	normalized := strings.TrimSpace(raw)
	if s := RequestStatus(strings.ToLower(normalized)); s.IsValid() {
		return s, nil
	}
	if s, ok := legacyStatusAliases[strings.ToLower(normalized)]; ok {
		return s, nil
	}
	for _, labels := range statusLabels {
		for status, label := range labels {
			if strings.EqualFold(label, normalized) {
				return status, nil
			}
		}
	}
	return "", fmt.Errorf("unknown request status %q", raw)
}
