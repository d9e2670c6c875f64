package graph

import (
	"container/list"
	"errors"
	"fmt"
	"strings"
)

// ErrCycleDetected is matched by every CycleError.
var ErrCycleDetected = errors.New("cycle detected in relationship graph")

// CycleInfo describes the tables a topological sort could not place.
type CycleInfo struct {
	TotalTables       int
	ProcessedTables   int
	UnprocessedTables []string
	CycleParticipants []string // subset of UnprocessedTables that lie on a cycle
	CyclePath         []string // e.g. [a, b, c, a]
}

// CycleError reports a cycle among foreign key dependencies.
type CycleError struct {
	Info *CycleInfo
}

func (e *CycleError) Error() string {
	msg := fmt.Sprintf("cycle detected in relationship graph: %d of %d tables could not be ordered",
		len(e.Info.UnprocessedTables), e.Info.TotalTables)

	if len(e.Info.CyclePath) > 0 {
		msg += fmt.Sprintf("\nCycle path: %s", strings.Join(e.Info.CyclePath, " -> "))
	}
	if len(e.Info.CycleParticipants) > 0 {
		msg += fmt.Sprintf("\nTables in cycle: %s", strings.Join(e.Info.CycleParticipants, ", "))
	}

	participants := make(map[string]bool, len(e.Info.CycleParticipants))
	for _, p := range e.Info.CycleParticipants {
		participants[p] = true
	}
	var blocked []string
	for _, u := range e.Info.UnprocessedTables {
		if !participants[u] {
			blocked = append(blocked, u)
		}
	}
	if len(blocked) > 0 {
		msg += fmt.Sprintf("\nTables blocked by cycle: %s", strings.Join(blocked, ", "))
	}
	return msg
}

func (e *CycleError) Is(target error) bool {
	return target == ErrCycleDetected
}

// inDegrees counts distinct referenced tables per table.
func (g *RelationshipGraph) inDegrees() map[string]int {
	deg := make(map[string]int, len(g.tables))
	for _, t := range g.tables {
		deg[t] = 0
	}
	for _, children := range g.children {
		for _, c := range children {
			deg[c]++
		}
	}
	return deg
}

// kahn runs Kahn's algorithm. Ties are broken by reflection order, so the
// result is deterministic. It returns the ordered tables and the ones left over.
func (g *RelationshipGraph) kahn() ([]string, []string) {
	deg := g.inDegrees()
	queue := list.New()
	for _, t := range g.tables {
		if deg[t] == 0 {
			queue.PushBack(t)
		}
	}

	order := make([]string, 0, len(g.tables))
	for queue.Len() > 0 {
		front := queue.Front()
		queue.Remove(front)
		table := front.Value.(string)
		order = append(order, table)

		for _, child := range g.children[table] {
			deg[child]--
			if deg[child] == 0 {
				queue.PushBack(child)
			}
		}
	}

	if len(order) == len(g.tables) {
		return order, nil
	}

	done := make(map[string]bool, len(order))
	for _, t := range order {
		done[t] = true
	}
	var rest []string
	for _, t := range g.tables {
		if !done[t] {
			rest = append(rest, t)
		}
	}
	return order, rest
}

// LoadOrder returns tables with every referenced table before the tables that
// reference it. Self-references do not constrain the order.
func (g *RelationshipGraph) LoadOrder() ([]string, error) {
	order, rest := g.kahn()
	if len(rest) > 0 {
		return nil, &CycleError{Info: g.cycleInfo(len(order), rest)}
	}
	return order, nil
}

// DeleteOrder is LoadOrder reversed.
func (g *RelationshipGraph) DeleteOrder() ([]string, error) {
	order, err := g.LoadOrder()
	if err != nil {
		return nil, err
	}
	out := make([]string, len(order))
	for i, t := range order {
		out[len(order)-1-i] = t
	}
	return out, nil
}

// Validate returns a CycleError when the table dependencies are cyclic.
func (g *RelationshipGraph) Validate() error {
	_, err := g.LoadOrder()
	return err
}

func (g *RelationshipGraph) cycleInfo(processed int, rest []string) *CycleInfo {
	allowed := make(map[string]bool, len(rest))
	for _, t := range rest {
		allowed[t] = true
	}

	var participants []string
	for _, t := range rest {
		if g.findPath(t, allowed) != nil {
			participants = append(participants, t)
		}
	}

	info := &CycleInfo{
		TotalTables:       len(g.tables),
		ProcessedTables:   processed,
		UnprocessedTables: rest,
		CycleParticipants: participants,
	}
	if len(participants) > 0 {
		info.CyclePath = g.findPath(participants[0], allowed)
	}
	return info
}

// findPath returns a path from start back to itself through allowed tables, or nil.
func (g *RelationshipGraph) findPath(start string, allowed map[string]bool) []string {
	visited := make(map[string]bool)
	path := []string{start}
	if g.dfsPath(start, start, visited, allowed, &path) {
		return path
	}
	return nil
}

func (g *RelationshipGraph) dfsPath(current, target string, visited, allowed map[string]bool, path *[]string) bool {
	for _, child := range g.children[current] {
		if !allowed[child] {
			continue
		}
		if child == target {
			*path = append(*path, target)
			return true
		}
		if visited[child] {
			continue
		}
		visited[child] = true
		*path = append(*path, child)
		if g.dfsPath(child, target, visited, allowed, path) {
			return true
		}
		*path = (*path)[:len(*path)-1]
	}
	return false
}
