package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesAppended = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "marketplace_messages_appended_total",
			Help: "Total messages appended to conversations",
		},
	)

	MessagesMarkedRead = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "marketplace_messages_marked_read_total",
			Help: "Total messages transitioned to read",
		},
	)

	HiresCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "marketplace_hires_created_total",
			Help: "Total hire requests created",
		},
	)

	HireTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketplace_hire_transitions_total",
			Help: "Total hire status transitions",
		},
		[]string{"to"},
	)

	ReviewsSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "marketplace_reviews_submitted_total",
			Help: "Total reviews accepted by the review gate",
		},
	)

	FeedEventsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketplace_feed_events_dispatched_total",
			Help: "Change-feed events dispatched to notification counters",
		},
		[]string{"collection"},
	)
)
