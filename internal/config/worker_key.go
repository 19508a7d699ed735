package config

type WorkerKeyStruct struct {
	PersistSnapshotsQueue string
	ArchiveResultsQueue   string
}

var WorkerKey = &WorkerKeyStruct{
	PersistSnapshotsQueue: "persist_snapshots_queue",
	ArchiveResultsQueue:   "archive_results_queue",
}
