package lexicon

// defaultCategories is the built-in term set, mirrored by configs/lexicon.yaml.
// Keep the two in sync: the artifact on disk wins when configured.
func defaultCategories() []Category {
	return []Category{
		{
			Name: "languages",
			Entries: []Entry{
				{Term: "python"},
				{Term: "java"},
				{Term: "javascript", Aliases: []string{"js"}},
				{Term: "typescript", Aliases: []string{"ts"}},
				{Term: "go", Aliases: []string{"golang"}},
				{Term: "c++", Aliases: []string{"cpp"}},
				{Term: "c#", Aliases: []string{"csharp"}},
				{Term: "c"},
				{Term: "rust"},
				{Term: "ruby"},
				{Term: "kotlin"},
				{Term: "swift"},
				{Term: "scala"},
				{Term: "php"},
				{Term: "r"},
				{Term: "matlab"},
				{Term: "sql"},
				{Term: "bash", Aliases: []string{"shell scripting"}},
				{Term: "html"},
				{Term: "css"},
			},
		},
		{
			Name: "frameworks",
			Entries: []Entry{
				{Term: "react", Aliases: []string{"react.js", "reactjs"}},
				{Term: "angular"},
				{Term: "vue", Aliases: []string{"vue.js", "vuejs"}},
				{Term: "node.js", Aliases: []string{"nodejs", "node"}},
				{Term: "express"},
				{Term: "django"},
				{Term: "flask"},
				{Term: "fastapi"},
				{Term: "spring", Aliases: []string{"spring boot"}},
				{Term: ".net", Aliases: []string{"dotnet"}},
				{Term: "rails", Aliases: []string{"ruby on rails"}},
				{Term: "next.js", Aliases: []string{"nextjs"}},
				{Term: "graphql"},
				{Term: "rest api", Aliases: []string{"rest apis", "restful"}},
				{Term: "grpc"},
				{Term: "websocket", Aliases: []string{"websockets"}},
			},
		},
		{
			Name: "cloud-infra",
			Entries: []Entry{
				{Term: "aws", Aliases: []string{"amazon web services"}},
				{Term: "azure"},
				{Term: "gcp", Aliases: []string{"google cloud"}},
				{Term: "docker"},
				{Term: "kubernetes", Aliases: []string{"k8s"}},
				{Term: "terraform"},
				{Term: "ansible"},
				{Term: "jenkins"},
				{Term: "ci/cd", Aliases: []string{"cicd", "continuous integration"}},
				{Term: "git"},
				{Term: "github actions"},
				{Term: "linux"},
				{Term: "nginx"},
				{Term: "serverless", Aliases: []string{"lambda"}},
				{Term: "microservices"},
			},
		},
		{
			Name: "databases",
			Entries: []Entry{
				{Term: "postgresql", Aliases: []string{"postgres"}},
				{Term: "mysql"},
				{Term: "sqlite"},
				{Term: "mongodb", Aliases: []string{"mongo"}},
				{Term: "redis"},
				{Term: "elasticsearch"},
				{Term: "dynamodb"},
				{Term: "cassandra"},
				{Term: "kafka"},
				{Term: "rabbitmq"},
				{Term: "snowflake"},
				{Term: "bigquery"},
				{Term: "spark", Aliases: []string{"apache spark"}},
				{Term: "hadoop"},
				{Term: "airflow"},
				{Term: "etl"},
			},
		},
		{
			Name: "ml",
			Entries: []Entry{
				{Term: "machine learning", Aliases: []string{"ml"}},
				{Term: "deep learning"},
				{Term: "pytorch"},
				{Term: "tensorflow"},
				{Term: "scikit-learn", Aliases: []string{"sklearn"}},
				{Term: "pandas"},
				{Term: "numpy"},
				{Term: "nlp", Aliases: []string{"natural language processing"}},
				{Term: "computer vision", Aliases: []string{"opencv"}},
				{Term: "llm", Aliases: []string{"large language models"}},
				{Term: "data science"},
				{Term: "data analysis", Aliases: []string{"data analytics"}},
				{Term: "statistics"},
			},
		},
	}
}
