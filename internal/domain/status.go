package domain

// Status do ciclo de vida de uma transação.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusReversed  Status = "REVERSED"
	StatusReturned  Status = "RETURNED"
)

// Tabela de transições permitidas. Nenhum estado volta para PENDING.
var transitions = map[Status][]Status{
	StatusPending:   {StatusCompleted, StatusFailed},
	StatusCompleted: {StatusReversed, StatusReturned},
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed, StatusReversed, StatusReturned:
		return true
	}
	return false
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal retorna true quando nenhuma transição parte do status.
// COMPLETED ainda aceita devolução/reverso.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// IsUndone indica que o registro já foi devolvido ou revertido.
func (s Status) IsUndone() bool {
	return s == StatusReturned || s == StatusReversed
}
