package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// The closed set of job kinds. Each kind carries its own typed payload;
// the worker mux dispatches on these constants exhaustively.
const (
	TypeIngestItem        = "episode:ingest"
	TypeIngestCollection  = "collection:ingest"
	TypeConvertUpload     = "upload:convert"
	TypeRefreshCollection = "collection:refresh"
)

type IngestItemPayload struct {
	EpisodeID string
}

func NewIngestItemTask(episodeID string) (*asynq.Task, error) {
	payload, err := json.Marshal(IngestItemPayload{EpisodeID: episodeID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeIngestItem, payload), nil
}

type IngestCollectionPayload struct {
	FeedID    string
	Reference string
}

func NewIngestCollectionTask(feedID, reference string) (*asynq.Task, error) {
	payload, err := json.Marshal(IngestCollectionPayload{FeedID: feedID, Reference: reference})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeIngestCollection, payload), nil
}

type ConvertUploadPayload struct {
	EpisodeID string
	InputPath string
}

func NewConvertUploadTask(episodeID, inputPath string) (*asynq.Task, error) {
	payload, err := json.Marshal(ConvertUploadPayload{EpisodeID: episodeID, InputPath: inputPath})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeConvertUpload, payload), nil
}

type RefreshCollectionPayload struct {
	CollectionSourceID string
}

func NewRefreshCollectionTask(collectionSourceID string) (*asynq.Task, error) {
	payload, err := json.Marshal(RefreshCollectionPayload{CollectionSourceID: collectionSourceID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeRefreshCollection, payload), nil
}
