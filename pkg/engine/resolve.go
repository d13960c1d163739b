package engine

import "regexp"

// placeholderPattern matches a symbolic payload value of the shape
// "{{entityKind.field}}". The whole value must be a placeholder; embedded
// occurrences inside longer strings are not substituted.
var placeholderPattern = regexp.MustCompile(`^\{\{([a-zA-Z]+)\.([a-zA-Z_]+)\}\}$`)

// identifierField is the only placeholder field the resolver honors.
const identifierField = "identifier"

// Resolve rewrites an operation's payload, replacing placeholders that refer
// to the identifier produced by the most recent successful operation of a
// given entity kind within the same run. Unresolvable placeholders (unknown
// kind, non-identifier field, missing or failed prior result) are left
// untouched: the record store's own validation surfaces the failure, which
// keeps ambiguous intent out of this core.
//
// The returned operation is a copy; the input operation and its payload are
// preserved for audit and logging.
func Resolve(op *Operation, resultsByKind map[EntityKind]*ExecutionResult) *Operation {
	resolved := op.Clone()
	if len(resolved.Payload) == 0 {
		return resolved
	}

	for key, value := range resolved.Payload {
		str, ok := value.(string)
		if !ok {
			continue
		}

		match := placeholderPattern.FindStringSubmatch(str)
		if match == nil {
			continue
		}

		kind := EntityKind(match[1])
		field := match[2]
		if field != identifierField {
			continue
		}

		result, ok := resultsByKind[kind]
		if !ok || !result.Success || result.ProducedIdentifier == "" {
			continue
		}

		resolved.Payload[key] = result.ProducedIdentifier
	}

	return resolved
}
