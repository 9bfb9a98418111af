package main

import (
	"sort"
	"strings"
)

// maxAgeGap is the widest age difference still counted as a match, inclusive.
const maxAgeGap = 5

type MatchResult struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Email           string   `json:"email"`
	Location        string   `json:"location"`
	CommonInterests []string `json:"common_interests"`
	WithinAgeRange  bool     `json:"within_age_range"`
	SameLocation    bool     `json:"same_location"`
	MatchScore      int      `json:"match_score"`
}

// scoreMatch rates candidate against current: one point per shared interest,
// one for an age gap of at most maxAgeGap years and one for the same location
// ignoring case.
func scoreMatch(current, candidate User) MatchResult {
	common := commonInterests(current.Interests, candidate.Interests)
	within := abs(current.Age-candidate.Age) <= maxAgeGap
	same := strings.ToLower(current.Location) == strings.ToLower(candidate.Location)

	score := len(common)
	if within {
		score++
	}
	if same {
		score++
	}
	return MatchResult{
		ID:              candidate.ID,
		Name:            candidate.Name,
		Email:           candidate.Email,
		Location:        candidate.Location,
		CommonInterests: common,
		WithinAgeRange:  within,
		SameLocation:    same,
		MatchScore:      score,
	}
}

// suggestMatches scores every candidate except current itself and orders the
// results by score, highest first. Equal scores keep their input order.
func suggestMatches(current User, candidates []User) []MatchResult {
	out := make([]MatchResult, 0, len(candidates))
	for _, c := range candidates {
		if c.ID == current.ID {
			continue
		}
		out = append(out, scoreMatch(current, c))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MatchScore > out[j].MatchScore
	})
	return out
}

func oppositeRoleFilter(current User, all []User) []User {
	want := current.Role.Opposite()
	out := make([]User, 0, len(all))
	for _, u := range all {
		if u.Role == want {
			out = append(out, u)
		}
	}
	return out
}

// commonInterests returns the set intersection in a's order, without
// duplicates. Tokens are compared exactly.
func commonInterests(a, b []string) []string {
	inB := make(map[string]struct{}, len(b))
	for _, s := range b {
		inB[s] = struct{}{}
	}
	out := []string{}
	seen := make(map[string]struct{}, len(a))
	for _, s := range a {
		if _, ok := inB[s]; !ok {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
