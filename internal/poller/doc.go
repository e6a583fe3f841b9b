// Package poller implements the Snapshot Poller component.
//
// The Snapshot Poller:
//   - Fetches an analysis snapshot for every configured symbol each cycle
//   - Stamps every record in a cycle with one shared capture instant
//   - Fans fetches out concurrently and publishes the batch only after all settle
//   - Leaves failed symbols out of the batch and reports each to the observer
//   - Sleeps a fixed interval between cycles, or a short backoff after a failed cycle
package poller
