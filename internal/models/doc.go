// Package models defines the core domain models for settleup.
//
// # Models
//
//   - User: a registered account; friendships are symmetric and stored separately
//   - Group: a named set of members with an owner
//   - Expense: a cost paid by one user, optionally shared through Splits
//   - Split: one participant's owed share of a shared expense
//   - Activity: an audit record of expense changes and settlements
//
// All amounts are money.Cents and percentages money.Percent; floats never reach
// this package.
//
// # References
//
// Relationships are stored as ID strings. When a caller needs a name for an ID it
// resolves it into a UserRef, which is either an UnresolvedUser (ID only) or a
// ResolvedUser (ID, name, email). Code that renders a reference must switch on
// the concrete type rather than probing fields.
package models
