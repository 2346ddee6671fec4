package state

import "github.com/hollowaylab/reverie/pkg/store"

// BuildThread reconstructs the reply chain ending at startID. It follows
// inReplyTo parent links, visits each message at most once (reply graphs
// in the wild contain cycles), and returns the chain oldest-first so a
// parent always precedes its reply.
func BuildThread(messages []store.Memory, startID string) []store.Memory {
	byID := make(map[string]store.Memory, len(messages))
	for _, m := range messages {
		byID[m.ID] = m
	}

	visited := make(map[string]bool)
	var chain []store.Memory

	id := startID
	for id != "" {
		if visited[id] {
			break
		}
		m, ok := byID[id]
		if !ok {
			break
		}
		visited[id] = true
		chain = append(chain, m)
		id = m.Content.InReplyTo
	}

	// The walk collected reply-first; flip to parent-first.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}
