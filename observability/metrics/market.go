package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// MarketMetrics tracks the settlement engines' throughput for operators.
type MarketMetrics struct {
	auctionsCreated  prometheus.Counter
	bidsPlaced       prometheus.Counter
	bidsRefunded     prometheus.Counter
	settlements      *prometheus.CounterVec
	listingsCreated  prometheus.Counter
	listingsSold     prometheus.Counter
	listingsExpired  prometheus.Counter
	escrowsCreated   prometheus.Counter
	escrowsReleased  prometheus.Counter
	escrowsWithdrawn prometheus.Counter
	royaltyPayouts   prometheus.Counter
	emergencyActions *prometheus.CounterVec
}

var (
	marketOnce     sync.Once
	marketRegistry *MarketMetrics
)

// Market returns the metrics registry tracking settlement activity.
func Market() *MarketMetrics {
	marketOnce.Do(func() {
		marketRegistry = &MarketMetrics{
			auctionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "market_auctions_created_total",
				Help: "Count of auctions opened.",
			}),
			bidsPlaced: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "market_bids_placed_total",
				Help: "Count of accepted bids across all auctions.",
			}),
			bidsRefunded: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "market_bids_refunded_total",
				Help: "Count of displaced-bidder refunds issued.",
			}),
			settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "market_auction_settlements_total",
				Help: "Count of auction settlements by outcome.",
			}, []string{"outcome"}),
			listingsCreated: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "market_listings_created_total",
				Help: "Count of fixed-price listings opened.",
			}),
			listingsSold: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "market_listings_sold_total",
				Help: "Count of completed fixed-price sales.",
			}),
			listingsExpired: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "market_listings_expired_total",
				Help: "Count of expired listings recovered to their sellers.",
			}),
			escrowsCreated: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "market_escrows_created_total",
				Help: "Count of escrows opened.",
			}),
			escrowsReleased: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "market_escrows_released_total",
				Help: "Count of escrows released by their authority.",
			}),
			escrowsWithdrawn: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "market_escrows_withdrawn_total",
				Help: "Count of escrows drained through the admin escape hatch.",
			}),
			royaltyPayouts: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "market_royalty_payouts_total",
				Help: "Count of completed royalty distributions.",
			}),
			emergencyActions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "market_emergency_actions_total",
				Help: "Count of admin emergency interventions by module.",
			}, []string{"module"}),
		}
		prometheus.MustRegister(
			marketRegistry.auctionsCreated,
			marketRegistry.bidsPlaced,
			marketRegistry.bidsRefunded,
			marketRegistry.settlements,
			marketRegistry.listingsCreated,
			marketRegistry.listingsSold,
			marketRegistry.listingsExpired,
			marketRegistry.escrowsCreated,
			marketRegistry.escrowsReleased,
			marketRegistry.escrowsWithdrawn,
			marketRegistry.royaltyPayouts,
			marketRegistry.emergencyActions,
		)
	})
	return marketRegistry
}

// ObserveEvent maps an emitted settlement event onto the counters. Unknown
// event types are ignored.
func (m *MarketMetrics) ObserveEvent(eventType string) {
	if m == nil {
		return
	}
	switch eventType {
	case "auction.created":
		m.auctionsCreated.Inc()
	case "auction.bid_placed":
		m.bidsPlaced.Inc()
	case "auction.bid_refunded":
		m.bidsRefunded.Inc()
	case "auction.settled":
		m.settlements.WithLabelValues("sale").Inc()
	case "auction.settled_no_sale":
		m.settlements.WithLabelValues("no_sale").Inc()
	case "auction.canceled":
		m.settlements.WithLabelValues("canceled").Inc()
	case "auction.emergency_refund":
		m.emergencyActions.WithLabelValues("auction").Inc()
	case "listing.created":
		m.listingsCreated.Inc()
	case "listing.sold":
		m.listingsSold.Inc()
	case "listing.expired_recovered":
		m.listingsExpired.Inc()
	case "escrow.created":
		m.escrowsCreated.Inc()
	case "escrow.released":
		m.escrowsReleased.Inc()
	case "escrow.emergency_withdrawn":
		m.emergencyActions.WithLabelValues("escrow").Inc()
		m.escrowsWithdrawn.Inc()
	case "royalty.distributed":
		m.royaltyPayouts.Inc()
	}
}
