package lang

func init() {
	Register(&LanguageSpec{
		Language:             C,
		FileExtensions:       []string{".c"},
		SourceExtensions:     []string{".c"},
		FunctionNodeTypes:    []string{"function_definition"},
		DeclarationNodeTypes: []string{"declaration"},
		RecordNodeTypes:      []string{"struct_specifier", "union_specifier"},
		IncludeNodeTypes:     []string{"preproc_include"},
		ConditionalNodeTypes: []string{"preproc_ifdef", "preproc_if"},
	})
}
