/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package effects resolves server-pushed card effects into a single action
// request by walking the player through a short sequence of choices.
package effects

// Kind identifies one of the effects the server can ask the client to resolve.
type Kind string

const (
	KindNone                    Kind = ""
	KindSelectAnyPlayer         Kind = "selectAnyPlayer"
	KindStealSet                Kind = "stealSet"
	KindAndThenThereWasOneMore  Kind = "andThenThereWasOneMore"
	KindRevealSecret            Kind = "revealSecret"
	KindRevealOwnSecret         Kind = "revealOwnSecret"
	KindHideSecret              Kind = "hideSecret"
	KindLookIntoTheAshes        Kind = "lookIntoTheAshes"
	KindDelayTheMurderersEscape Kind = "delayTheMurderersEscape"
	KindSelectOwnCard           Kind = "selectOwnCard"
	KindSelectDirection         Kind = "selectDirection"
	KindSelectSet               Kind = "selectSet"
)

// Kinds lists every resolvable effect, in table order.
var Kinds = []Kind{
	KindSelectAnyPlayer,
	KindStealSet,
	KindAndThenThereWasOneMore,
	KindRevealSecret,
	KindRevealOwnSecret,
	KindHideSecret,
	KindLookIntoTheAshes,
	KindDelayTheMurderersEscape,
	KindSelectOwnCard,
	KindSelectDirection,
	KindSelectSet,
}

// ParseKind reports whether s names a known effect.
func ParseKind(s string) (Kind, bool) {
	k := Kind(s)
	if _, ok := table[k]; !ok {
		return KindNone, false
	}
	return k, true
}

func (k Kind) String() string {
	return string(k)
}

// Step is one "ask the player for X" stage of a flow.
type Step string

const (
	StepNone            Step = ""
	StepSelectPlayer    Step = "selectPlayer"
	StepSelectPlayer2   Step = "selectPlayer2"
	StepSelectSecret    Step = "selectSecret"
	StepSelectSet       Step = "selectSet"
	StepSelectCard      Step = "selectCard"
	StepOrderDiscard    Step = "orderDiscard"
	StepSelectDirection Step = "selectDirection"
)

func (s Step) String() string {
	return string(s)
}

// Direction is the answer to a selectDirection step.
type Direction string

const (
	DirectionNone  Direction = ""
	DirectionLeft  Direction = "left"
	DirectionRight Direction = "right"
)

func (d Direction) valid() bool {
	return d == DirectionLeft || d == DirectionRight
}
