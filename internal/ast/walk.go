package ast

// Walk visits every declaration reachable from d in source order and hands
// each function declaration to fn. A nil d, or a nil declaration anywhere in
// the tree, is skipped.
func Walk(d Decl, fn func(*FunctionDecl)) {
	_ = WalkErr(d, func(f *FunctionDecl) error {
		fn(f)
		return nil
	})
}

// WalkErr is Walk with early termination: the first error returned by fn
// stops the traversal and is returned.
func WalkErr(d Decl, fn func(*FunctionDecl) error) error {
	if isNil(d) {
		return nil
	}
	if f, ok := d.(*FunctionDecl); ok {
		if err := fn(f); err != nil {
			return err
		}
	}
	if s, ok := d.(Scope); ok {
		for _, child := range s.Decls() {
			if err := WalkErr(child, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// isNil catches typed nil pointers stored in the Decl interface.
func isNil(d Decl) bool {
	switch v := d.(type) {
	case nil:
		return true
	case *TranslationUnitDecl:
		return v == nil
	case *NamespaceDecl:
		return v == nil
	case *RecordDecl:
		return v == nil
	case *LinkageSpecDecl:
		return v == nil
	case *FunctionDecl:
		return v == nil
	case *OtherDecl:
		return v == nil
	}
	return false
}
