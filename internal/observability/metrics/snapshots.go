package metrics

// SnapshotPublish records a publish attempt and, when stored, its size.
func SnapshotPublish(format, result string, size int) {
	if !enabled {
		return
	}
	snapshotPublishTotal.WithLabelValues(format, result).Inc()
	if result == "stored" {
		snapshotSizeBytes.Observe(float64(size))
	}
}

// SnapshotRetrieve records a snapshot retrieval.
func SnapshotRetrieve(status string) {
	if !enabled {
		return
	}
	snapshotRetrieveTotal.WithLabelValues(status).Inc()
}

// SnapshotDelete records a snapshot deletion.
func SnapshotDelete(status string) {
	if !enabled {
		return
	}
	snapshotDeleteTotal.WithLabelValues(status).Inc()
}

// ConfigRejected records a document rejected with the given error kind.
func ConfigRejected(kind string) {
	if !enabled {
		return
	}
	configRejectedTotal.WithLabelValues(kind).Inc()
}
