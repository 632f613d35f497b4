package botlist

import (
	"encoding/json"
	"iter"
)

// VoteIterator walks one fetched batch of voters. Each entry is parsed when
// reached; the iterator cannot be rewound.
type VoteIterator struct {
	raw     []json.RawMessage
	pos     int
	current TopGGUser
	err     error
}

func newVoteIterator(raw []json.RawMessage) *VoteIterator {
	return &VoteIterator{raw: raw}
}

// Next advances to the next voter. It returns false when the batch is
// exhausted or an entry fails to parse.
func (it *VoteIterator) Next() bool {
	if it == nil || it.err != nil || it.pos >= len(it.raw) {
		return false
	}
	user, err := NewTopGGUser(it.raw[it.pos])
	it.pos++
	if err != nil {
		it.err = err
		return false
	}
	it.current = user
	return true
}

// Vote returns the voter Next advanced to.
func (it *VoteIterator) Vote() TopGGUser {
	return it.current
}

// Err returns the parse error that stopped iteration, if any.
func (it *VoteIterator) Err() error {
	if it == nil {
		return nil
	}
	return it.err
}

// Len returns the size of the batch.
func (it *VoteIterator) Len() int {
	if it == nil {
		return 0
	}
	return len(it.raw)
}

// All drains the remaining voters as a range-over-func sequence.
func (it *VoteIterator) All() iter.Seq2[TopGGUser, error] {
	return func(yield func(TopGGUser, error) bool) {
		for it.Next() {
			if !yield(it.Vote(), nil) {
				return
			}
		}
		if err := it.Err(); err != nil {
			yield(TopGGUser{}, err)
		}
	}
}
