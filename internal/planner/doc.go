// Package planner handles the planning phase of media creation.
//
// The planner turns a set of discovered installers and a target disk into a
// deterministic partition layout. It validates capacity, sizes each slice
// under the chosen strategy, and renders the diskutil partition specs.
//
// Key responsibilities:
//   - Build a Plan with one entry per installer, in catalog order
//   - Size entries equally or by measured installer need
//   - Validate capacity and volume label uniqueness
//   - Render partition specs with the remainder slice last
//
// Planning is pure: it never touches the disk. The engine revalidates a plan
// against live disk state immediately before applying it.
package planner
