package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Sync engine metrics for monitoring message lifecycle and index refreshes
var (
	// Message lifecycle metrics
	MessageSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_message_sent_total",
		Help: "Total number of messages appended to a conversation log",
	}, []string{"kind"}) // "individual", "group"

	MessageRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_message_rejected_total",
		Help: "Total number of sends rejected before any remote call",
	}, []string{"reason"}) // "blocked", "empty"

	MessageDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_message_deleted_total",
		Help: "Total number of messages removed by multi-select delete",
	})

	// Chat index metrics
	IndexRefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_index_refresh_total",
		Help: "Total number of chat index snapshots derived from remote changes",
	}, []string{"status"}) // "ok", "decode_error"

	IndexEntryDegradedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_index_entry_degraded_total",
		Help: "Total number of index entries that fell back to placeholder data",
	})

	// Subscription metrics
	SubscriptionsActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "chat_subscriptions_active",
		Help: "Current number of live document subscriptions",
	}, []string{"collection"})

	// Remote store metrics
	StoreErrorTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_store_error_total",
		Help: "Total number of remote document store failures",
	}, []string{"op"}) // "get", "set", "update", "subscribe"

	// Secondary write metrics
	IndexWriteFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_index_write_failed_total",
		Help: "Total number of best-effort chat index updates that failed after a send",
	})

	// Retention metrics
	RetentionWipeTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_retention_wipe_total",
		Help: "Total number of conversation logs cleared by the retention timer",
	})

	// Block relationship metrics
	BlockToggleTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_block_toggle_total",
		Help: "Total number of block relationship toggles",
	}, []string{"direction"}) // "block", "unblock"
)
