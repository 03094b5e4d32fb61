package rdm

import "context"

// Discover walks the full UID address space with the standard RDM
// binary-search algorithm (ANSI E1.20 §8.7 / spec.md §4.5), calling found
// for every UID it successfully isolates and muted before moving on.
// Discovery always starts by unmuting every responder so a previous run's
// mute state cannot hide devices (spec.md §4.5 step "DISC_UN_MUTE broadcast").
//
// The stack-based form mirrors the teacher's connection-state-machine
// shape (an explicit work list instead of recursion) so the maximum depth
// bound (spec.md §9, DiscoveryMaxDepth = 49) is enforced without relying
// on Go's call stack.
func Discover(ctx context.Context, c *Controller, found func(UID)) error {
	if err := c.SendDiscUnMuteAll(ctx); err != nil {
		return err
	}

	type branch struct {
		lo, hi UID
		depth  int
	}
	// spec.md §4.5: the root interval excludes the reserved
	// BROADCAST_ALL_UID itself — [0, BROADCAST_ALL_UID - 1].
	stack := []branch{{lo: UID{}, hi: BroadcastAll.Prev(), depth: 0}}

	for len(stack) > 0 {
		b := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if b.depth > DiscoveryMaxDepth {
			continue
		}

		if b.lo == b.hi {
			if uid, ok := muteDevice(ctx, c, b.lo); ok {
				found(uid)
			}
			continue
		}

		uid, collision, err := probeBranch(ctx, c, b.lo, b.hi)
		if err != nil {
			continue // no response: this interval is empty
		}
		if collision {
			mid := Mid(b.lo, b.hi)
			stack = append(stack, branch{lo: mid.Next(), hi: b.hi, depth: b.depth + 1})
			stack = append(stack, branch{lo: b.lo, hi: mid, depth: b.depth + 1})
			continue
		}

		// Exactly one responder answered the branch: mute it, then
		// re-issue DISC_UNIQUE_BRANCH on the same interval up to
		// DiscoveryRetriesPerNode more times ("quick-finds") to catch a
		// sibling that was hidden behind the first reply, stopping as
		// soon as the interval goes quiet.
		if muted, ok := muteDevice(ctx, c, uid); ok {
			found(muted)
		}
		for i := 0; i < DiscoveryRetriesPerNode; i++ {
			uid2, collision2, err2 := probeBranch(ctx, c, b.lo, b.hi)
			if err2 != nil {
				break // no more responses in this interval
			}
			if collision2 {
				// More than one sibling remains hidden; fall back to
				// ordinary bisection for the rest of the interval.
				stack = append(stack, branch{lo: b.lo, hi: b.hi, depth: b.depth + 1})
				break
			}
			if muted2, ok := muteDevice(ctx, c, uid2); ok {
				found(muted2)
			}
		}
	}
	return nil
}

// probeBranch sends DISC_UNIQUE_BRANCH(lo, hi) up to DiscoveryRetriesPerNode
// times, since a lone responder's reply is sometimes lost to line noise
// (spec.md §4.5). A collision is conclusive on the first sighting and is
// never retried; a plain timeout is retried until the budget is spent.
func probeBranch(ctx context.Context, c *Controller, lo, hi UID) (uid UID, collision bool, err error) {
	var lastErr error
	for i := 0; i < DiscoveryRetriesPerNode; i++ {
		u, e := c.SendDiscUniqueBranch(ctx, lo, hi)
		if e == nil {
			return u, false, nil
		}
		if e == ErrDataCollision {
			return UID{}, true, nil
		}
		lastErr = e
	}
	return UID{}, false, lastErr
}

// muteDevice mutes uid, retrying the direct DISC_MUTE up to
// DiscoveryRetriesPerNode times before falling back once to the
// byte-swapped UID — some real fixtures echo their UID with reversed byte
// order (spec.md §4.5, §9 Open Question decision). It returns the UID form
// that was actually acknowledged.
func muteDevice(ctx context.Context, c *Controller, uid UID) (UID, bool) {
	for i := 0; i < DiscoveryRetriesPerNode; i++ {
		if err := c.SendDiscMute(ctx, uid); err == nil {
			return uid, true
		}
	}
	flipped := uid.FlipEndian()
	if err := c.SendDiscMute(ctx, flipped); err == nil {
		return flipped, true
	}
	return UID{}, false
}
