package listsync

import (
	"fmt"
	"strings"

	"github.com/idilsaglam/posts/internal/config"
	"github.com/idilsaglam/posts/internal/model"
)

// VotePolicy decides what a vote sends to the server.
type VotePolicy int

const (
	// VoteIncrement sends the incremented counter; local and remote agree.
	VoteIncrement VotePolicy = iota
	// VoteEcho sends the counter unchanged and increments only the local copy.
	VoteEcho
)

func (p VotePolicy) String() string {
	if p == VoteEcho {
		return config.VoteEcho
	}
	return config.VoteIncrement
}

// ParseVotePolicy maps a config value to a policy.
func ParseVotePolicy(s string) (VotePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", config.VoteIncrement:
		return VoteIncrement, nil
	case config.VoteEcho:
		return VoteEcho, nil
	}
	return VoteIncrement, fmt.Errorf("unknown vote policy %q", s)
}

// vote returns the request body and the local patch for one vote.
func (p VotePolicy) vote(it model.Item, up bool) (send, local model.UpdateRequest) {
	local = it.Update()
	if up {
		local.Upvote++
	} else {
		local.Downvote++
	}
	if p == VoteEcho {
		return it.Update(), local
	}
	return local, local
}
