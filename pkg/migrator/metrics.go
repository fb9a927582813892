// Copyright 2024-2026 Aiku AI

package migrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UsersMigrated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slack2matrix_users_total",
			Help: "Users processed during identity migration",
		},
		[]string{"result"}, // "created", "failed" or "skipped"
	)

	RoomsMigrated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slack2matrix_rooms_total",
			Help: "Rooms processed during room migration",
		},
		[]string{"kind", "result"}, // kind "channel", "group", "dm" or "mpim"
	)

	MessagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slack2matrix_messages_total",
			Help: "Messages processed during replay",
		},
		[]string{"outcome"}, // "sent", "skipped", "deferred", "dropped" or "failed"
	)

	ReactionsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slack2matrix_reactions_total",
			Help: "Reaction events sent during replay",
		},
		[]string{"result"},
	)

	FilesUploaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slack2matrix_files_total",
			Help: "Files processed during replay",
		},
		[]string{"result"}, // "uploaded", "too_large", "skipped" or "failed"
	)

	RoomsReplayed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "slack2matrix_rooms_replayed_total",
			Help: "Rooms whose message history has been replayed",
		},
	)
)
