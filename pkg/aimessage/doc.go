// Package aimessage translates raw vendor responses into the unified
// llm.AIMessage envelope.
//
// There is one function per vendor. Translators are pure: they only read the
// response and the call metadata, and absent optional fields degrade to empty
// or zero values instead of failing.
package aimessage
