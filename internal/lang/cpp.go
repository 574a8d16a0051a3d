package lang

func init() {
	Register(&LanguageSpec{
		Language:             CPP,
		FileExtensions:       []string{".cpp", ".h", ".hpp", ".cc", ".cxx", ".hxx", ".hh", ".inl"},
		SourceExtensions:     []string{".cpp", ".cc", ".cxx"},
		FunctionNodeTypes:    []string{"function_definition"},
		DeclarationNodeTypes: []string{"declaration", "field_declaration"},
		NamespaceNodeTypes:   []string{"namespace_definition"},
		RecordNodeTypes:      []string{"class_specifier", "struct_specifier", "union_specifier"},
		LinkageNodeTypes:     []string{"linkage_specification"},
		IncludeNodeTypes:     []string{"preproc_include"},
		ConditionalNodeTypes: []string{"preproc_ifdef", "preproc_if"},
		SkipNodeTypes: []string{
			"template_declaration",
			"template_instantiation",
			"friend_declaration",
			"alias_declaration",
			"static_assert_declaration",
		},
	})
}
