// Package ingest provides the building blocks of the catalog ingestion
// pipeline: title and slug derivation from source filenames, the AssetStore
// interface for remote object stores, the Catalog interface for product
// registration, and the result types shared by the batch orchestrator.
//
// Storage backends (Cloudinary, S3, filesystem, memory) live under storage/,
// catalog backends (HTTP API, Postgres, memory) under catalog/, and the batch
// orchestrator under batch/.
//
// Ordering
//
// A ProductRecord is only submitted after the upload of its RemoteAsset has
// returned a URL. The two steps are not transactional: if registration fails
// the uploaded object stays in the store.
package ingest
