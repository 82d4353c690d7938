// Package dag provides a small directed acyclic graph used to order work:
// projects (parents before children) and tasks (dependencies before
// dependents). Orders are deterministic: among nodes that are ready at the
// same time, the one added first comes first.
package dag
