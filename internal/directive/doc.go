// Package directive parses schedule directive lines.
//
// Two line grammars are accepted:
//
//	*/<minutes> <command...>                      recurring, starting immediately
//	<minute> <hour> <day> <month> <year> <command...>  one-time, local wall clock
package directive
