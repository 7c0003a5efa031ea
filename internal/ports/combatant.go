// Package ports declares the interfaces external collaborators satisfy.
package ports

// Combatant is the externally-owned battle unit ("monster") a player brings
// to each round. The match core holds references for matchup wiring only;
// damage, healing and block resolution belong to the battle layer.
type Combatant interface {
	CurrentHealth() int
	MaxHealth() int
	ApplyDamage(amount int)
	Heal(amount int)
	AddBlock(amount int)
	IsDefeated() bool
	// OnChanged registers a hook fired whenever the combatant's stats change.
	OnChanged(fn func())
}
