// Package sitecontent implements the publish pipeline of a bilingual marketing
// site: an admin edits one JSON content document and uploads media, and
// publishing commits the document to a source-controlled store.
//
// The pipeline is made of four parts:
//
//   - EditSession holds the document being edited and applies path-addressed
//     replacements ("sections.hero.cta.0.label") on a deep copy.
//   - ContentStore reads the document from a local working copy and writes it
//     to both the local copy and a durable RemoteStore, using the remote
//     revision marker for optimistic concurrency.
//   - Ingestor normalizes uploaded images (resize and recompress) and stores
//     them either in a BlobStore or in the git repository next to the content.
//   - Publisher is the admin-facing coordinator tying the three together behind
//     an Authorizer.
//
// Publish Outcomes
//
// A publish always ends in exactly one of three outcomes: OutcomePublished (the
// remote store accepted the commit), OutcomeDegraded (only the local copy was
// written because no remote store is configured) and OutcomeFailed (the remote
// store is configured but rejected the commit). Degraded is never reported as
// a plain success, since the live site did not change.
//
// Backends live in subpackages: storage/fs, storage/memory, storage/s3 and
// storage/minio for local files and blobs; remote/github, remote/gitrepo and
// remote/postgres for the durable document store.
package sitecontent
