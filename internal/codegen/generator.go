package codegen

// Generator is one opcode family's code-generation strategy: FastPath
// emits the inline, type-specialized happy path and returns whether a
// slow path was registered (false means the opcode never needs one);
// SlowPath emits that deferred path once, after every block's fast paths
// have been laid down, exactly mirroring original_source's two-phase
// FullGenerator trait (generator.rs) and mod.rs's `slow_paths` vector.
type Generator interface {
	FastPath(gen *FullCodegen) bool
	SlowPath(gen *FullCodegen)
}
