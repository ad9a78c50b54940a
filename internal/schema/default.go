package schema

// DefaultVersion is the schema version a fresh store is created at.
const DefaultVersion = "1.3.0"

func userIndex() Index { return Index{Name: "userId", Field: FieldUserID} }

// Default returns the personal finance manifest.
func Default() *Manifest {
	return &Manifest{
		Version: DefaultVersion,
		Collections: []Collection{
			{
				Name:      "users",
				Indexes:   []Index{{Name: "email", Field: "email", Unique: true}},
				Sensitive: []string{"phone"},
			},
			{
				Name: "accounts",
				Indexes: []Index{
					userIndex(),
					{Name: "type", Field: "type"},
					{Name: "institution", Field: "institution"},
				},
				Sensitive: []string{"accountNumber", "routingNumber", "balance"},
			},
			{
				Name: "transactions",
				Indexes: []Index{
					userIndex(),
					{Name: "accountId", Field: "accountId"},
					{Name: "date", Field: "date"},
					{Name: "category", Field: "category"},
					{Name: "type", Field: "type"},
				},
				Sensitive: []string{"amount", "description", "notes", "merchant"},
				Protected: []string{"accountId"},
			},
			{
				Name:    "categories",
				Indexes: []Index{userIndex(), {Name: "type", Field: "type"}},
			},
			{
				Name: "goals",
				Indexes: []Index{
					userIndex(),
					{Name: "status", Field: "status"},
					{Name: "targetDate", Field: "targetDate"},
				},
				Sensitive: []string{"targetAmount", "currentAmount", "notes"},
			},
			{
				Name: "budgets",
				Indexes: []Index{
					userIndex(),
					{Name: "categoryId", Field: "categoryId"},
					{Name: "period", Field: "period"},
				},
				Sensitive: []string{"amount", "spent"},
			},
			{
				Name: "insights",
				Indexes: []Index{
					userIndex(),
					{Name: "type", Field: "type"},
					{Name: "createdAt", Field: FieldCreatedAt},
				},
				Sensitive: []string{"data"},
			},
			{
				Name:    "settings",
				Indexes: []Index{userIndex()},
			},
			{
				Name:    "cache",
				Indexes: []Index{{Name: "expiresAt", Field: "expiresAt"}},
			},
		},
	}
}
