// Package arbiter models the dual-owner bus arbiter: the owner state
// machine, the reference model that predicts its transitions, and the
// probe contract a test harness uses to drive and observe a physical
// arbiter through GPIO.
//
// At most one of the two requesters, A and B, holds the bus at a time.
// Ties from the idle state are broken round-robin against the previous
// owner, and a held BUS_ACTIVE line inhibits release of the current
// owner even after its request has been withdrawn.
package arbiter
