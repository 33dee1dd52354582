package sink

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/iwvelando/equity-snapshot/internal/config"
	"github.com/iwvelando/equity-snapshot/internal/form"
	"github.com/iwvelando/equity-snapshot/pkg/constants"
	"google.golang.org/api/option"
)

// documentAdder adds one document to a collection.
type documentAdder interface {
	Add(ctx context.Context, data interface{}) error
}

type collectionAdder struct {
	ref *firestore.CollectionRef
}

func (c collectionAdder) Add(ctx context.Context, data interface{}) error {
	_, _, err := c.ref.Add(ctx, data)
	return err
}

// FirestoreSink adds one document per submission to a Firestore collection.
type FirestoreSink struct {
	client *firestore.Client
	adder  documentAdder
}

// NewFirestoreSink connects to the configured project. Without a
// credentials file, application default credentials are used.
func NewFirestoreSink(ctx context.Context, cfg config.FirestoreConfig) (*FirestoreSink, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := firestore.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}

	collection := cfg.Collection
	if collection == "" {
		collection = constants.DefaultCollection
	}
	return &FirestoreSink{
		client: client,
		adder:  collectionAdder{ref: client.Collection(collection)},
	}, nil
}

func (s *FirestoreSink) Name() string { return constants.SinkTypeFirestore }

func (s *FirestoreSink) Save(ctx context.Context, sub form.Submission) error {
	doc, err := prepare(sub)
	if err != nil {
		return err
	}
	if err := s.adder.Add(ctx, doc); err != nil {
		return fmt.Errorf("firestore add failed: %w", err)
	}
	return nil
}

// Close closes the Firestore client.
func (s *FirestoreSink) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
