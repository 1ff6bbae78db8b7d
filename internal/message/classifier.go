package message

// Kind é o fluxo de recebimento escolhido para um envelope.
type Kind string

const (
	KindUnknown        Kind = "UNKNOWN"
	KindTransfer       Kind = "TRANSFER"        // pacs.008
	KindReturn         Kind = "RETURN"          // pacs.004
	KindAccountInquiry Kind = "ACCOUNT_INQUIRY" // acmt.023
)

// Matcher reconhece um formato de mensagem pela estrutura.
type Matcher struct {
	Kind  Kind
	Match func(e *Envelope) bool
}

// DefaultMatchers em ordem de prioridade. Devolução vem primeiro: qualquer payload com
// referência a uma instrução original é devolução, mesmo trazendo campos de transferência.
var DefaultMatchers = []Matcher{
	{Kind: KindReturn, Match: func(e *Envelope) bool {
		return e.Has("originalInstructionId") || e.Has("returnInstructionId")
	}},
	{Kind: KindAccountInquiry, Match: func(e *Envelope) bool {
		return e.Namespace() == NamespaceAccountInquiry && e.Has("creditor")
	}},
	{Kind: KindTransfer, Match: func(e *Envelope) bool {
		return e.Has("instructionId") || e.Has("creditor") || e.Has("amount")
	}},
}

type Classifier struct {
	matchers []Matcher
}

func NewClassifier(matchers ...Matcher) *Classifier {
	if len(matchers) == 0 {
		matchers = DefaultMatchers
	}
	return &Classifier{matchers: matchers}
}

// Classify devolve o primeiro matcher que reconhece o envelope, ou KindUnknown.
func (c *Classifier) Classify(e *Envelope) Kind {
	if e == nil {
		return KindUnknown
	}
	for _, m := range c.matchers {
		if m.Match(e) {
			return m.Kind
		}
	}
	return KindUnknown
}
