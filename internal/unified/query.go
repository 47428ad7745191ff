package unified

import (
	"strconv"
	"strings"

	wildcard "github.com/IGLOU-EU/go-wildcard/v2"
	"github.com/dustin/go-humanize"
)

// filterOp is a comparison operator inside a structured filter token.
type filterOp string

const (
	opContains filterOp = ":"
	opGT       filterOp = ">"
	opLT       filterOp = "<"
	opGTE      filterOp = ">="
	opLTE      filterOp = "<="
)

// filterExpr is one (field, operator, value) predicate. All predicates in a
// plan are combined with AND.
type filterExpr struct {
	field string
	op    filterOp
	value string
}

// namespaceScope is the parsed form of a "pbs:instance:datastore:namespace"
// query. It matches remote records only.
type namespaceScope struct {
	instance  string
	datastore string
	namespace string
}

// queryPlan is the parsed intermediate representation of a query string.
// It is rebuilt from the text on every evaluation pass; the text is the
// source of truth.
type queryPlan struct {
	scope   *namespaceScope
	filters []filterExpr
	terms   []string // lower-cased free-text terms, OR-ed
}

// structuredFields are the names the filter parser recognizes. A token
// naming anything else falls back to free text.
var structuredFields = map[string]struct{}{
	"vmid": {}, "id": {}, "name": {}, "node": {}, "instance": {},
	"storage": {}, "datastore": {}, "namespace": {}, "type": {},
	"source": {}, "provenance": {}, "size": {}, "verified": {},
	"protected": {}, "encrypted": {}, "owner": {}, "label": {},
	"notes": {}, "description": {},
}

// parseQuery splits a raw query string into a plan. The grammar is
// deliberately permissive: nothing here ever returns an error, a token that
// does not parse as a filter is just another search term.
func parseQuery(raw string) queryPlan {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return queryPlan{}
	}

	if rest, ok := strings.CutPrefix(raw, "pbs:"); ok {
		parts := strings.SplitN(rest, ":", 3)
		scope := &namespaceScope{instance: parts[0]}
		if len(parts) > 1 {
			scope.datastore = parts[1]
		}
		if len(parts) > 2 {
			scope.namespace = parts[2]
		}
		return queryPlan{scope: scope}
	}

	var plan queryPlan
	for _, token := range strings.Split(raw, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		if expr, ok := parseFilterToken(token); ok {
			plan.filters = append(plan.filters, expr)
			continue
		}
		plan.terms = append(plan.terms, strings.ToLower(token))
	}
	return plan
}

// parseFilterToken tries to read a token as field<op>value. Only tokens
// containing >, <, or : are candidates.
func parseFilterToken(token string) (filterExpr, bool) {
	idx := strings.IndexAny(token, "><:")
	if idx <= 0 {
		return filterExpr{}, false
	}

	field := strings.ToLower(strings.TrimSpace(token[:idx]))
	if _, known := structuredFields[field]; !known {
		return filterExpr{}, false
	}

	op := filterOp(token[idx : idx+1])
	rest := token[idx+1:]
	if (op == opGT || op == opLT) && strings.HasPrefix(rest, "=") {
		op += "="
		rest = rest[1:]
	}

	value := strings.TrimSpace(rest)
	if value == "" {
		return filterExpr{}, false
	}
	return filterExpr{field: field, op: op, value: value}, true
}

// Match reports whether the record satisfies the full plan: the namespace
// scope, every structured filter, and (when any free-text terms are
// present) at least one term.
func (p queryPlan) Match(b Backup) bool {
	if p.scope != nil {
		return p.scope.match(b)
	}
	for _, f := range p.filters {
		if !f.match(b) {
			return false
		}
	}
	if len(p.terms) == 0 {
		return true
	}
	return matchesAnyTerm(b, p.terms)
}

func (s namespaceScope) match(b Backup) bool {
	if b.Provenance != ProvenanceRemote {
		return false
	}
	if !strings.EqualFold(b.Node, s.instance) {
		return false
	}
	if !strings.EqualFold(b.Datastore, s.datastore) {
		return false
	}
	// An empty namespace segment and the root sentinel address the same
	// namespace.
	want := s.namespace
	if want == "" {
		want = RootNamespace
	}
	have := b.Namespace
	if have == "" {
		have = RootNamespace
	}
	return strings.EqualFold(have, want)
}

func (f filterExpr) match(b Backup) bool {
	switch f.field {
	case "size":
		return f.matchSize(b)
	case "vmid", "id":
		return f.matchNumericOrText(b.GuestID)
	case "verified":
		return matchBool(b.Verified, f.value)
	case "protected":
		return matchBool(b.Protected, f.value)
	case "encrypted":
		return matchBool(b.Encrypted, f.value)
	case "type":
		return strings.EqualFold(string(b.GuestType), f.value)
	case "source", "provenance":
		return strings.EqualFold(string(b.Provenance), f.value)
	case "name":
		return containsFold(b.GuestName, f.value)
	case "node":
		return containsFold(b.Node, f.value)
	case "instance":
		return containsFold(b.Instance, f.value)
	case "storage":
		return containsFold(b.Storage, f.value)
	case "datastore":
		return containsFold(b.Datastore, f.value)
	case "namespace":
		return containsFold(b.Namespace, f.value)
	case "owner":
		return containsFold(b.Owner, f.value)
	case "label":
		return containsFold(b.Label, f.value)
	case "notes", "description":
		return containsFold(b.Description, f.value)
	default:
		return true
	}
}

// matchSize compares the record size against the filter value, which may
// carry a humanized unit suffix ("500MB", "1.5 GiB").
func (f filterExpr) matchSize(b Backup) bool {
	want, err := humanize.ParseBytes(f.value)
	if err != nil {
		return false
	}
	if b.Size == nil {
		return false
	}
	return compareNumeric(uint64(*b.Size), want, f.op)
}

func (f filterExpr) matchNumericOrText(got string) bool {
	if f.op == opContains {
		return containsFold(got, f.value)
	}
	gotN, err1 := strconv.ParseUint(got, 10, 64)
	wantN, err2 := strconv.ParseUint(f.value, 10, 64)
	if err1 != nil || err2 != nil {
		return false
	}
	return compareNumeric(gotN, wantN, f.op)
}

func compareNumeric(got, want uint64, op filterOp) bool {
	switch op {
	case opGT:
		return got > want
	case opLT:
		return got < want
	case opGTE:
		return got >= want
	case opLTE:
		return got <= want
	default:
		return got == want
	}
}

func matchBool(got bool, value string) bool {
	switch strings.ToLower(value) {
	case "true", "yes", "1":
		return got
	case "false", "no", "0":
		return !got
	default:
		return false
	}
}

// containsFold does a case-insensitive substring match, upgrading to glob
// matching when the needle carries wildcard characters.
func containsFold(haystack, needle string) bool {
	h := strings.ToLower(haystack)
	n := strings.ToLower(needle)
	if strings.ContainsAny(n, "*?") {
		return wildcard.Match(n, h)
	}
	return strings.Contains(h, n)
}

// searchableFields returns the text fields a free-text term is checked
// against.
func searchableFields(b Backup) []string {
	return []string{
		b.GuestID,
		b.GuestName,
		b.Node,
		b.Label,
		b.Description,
		b.Storage,
		b.Datastore,
		b.Namespace,
	}
}

func matchesAnyTerm(b Backup, terms []string) bool {
	fields := searchableFields(b)
	for _, term := range terms {
		for _, field := range fields {
			if containsFold(field, term) {
				return true
			}
		}
	}
	return false
}
