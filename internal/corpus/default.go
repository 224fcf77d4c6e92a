package corpus

// #region default-corpus

// defaultArticles is the built-in knowledge base shipped with the assistant.
var defaultArticles = []KnowledgeArticle{
	{
		ID:       "POL-FL-2024",
		Title:    "Florida Residential Flood Insurance Policy (Update 2024)",
		Category: CategoryPolicy,
		Summary:  "Standardized guidelines for residential flooding claims in high-risk coastal zones of Florida.",
		Triggers: []string{"Flood", "Florida", "Miami"},
		Citations: []Citation{
			{
				ID:        "CIT-001",
				Source:    "FL-Flood-Regulation-2024.pdf",
				Page:      14,
				Paragraph: "Para 4.2",
				Content:   "Under Section 4.2, all residential claims involving primary living spaces below base flood elevation (BFE) require a specialized adjustor's report if the damage exceeds $50,000.",
			},
			{
				ID:        "CIT-002",
				Source:    "FL-Flood-Regulation-2024.pdf",
				Page:      22,
				Paragraph: "Section 8 - Electrical Systems",
				Content:   "Provisions for electrical system replacement are limited to certified remediation if saltwater intrusion is detected in the main panel.",
			},
		},
	},
	{
		ID:       "SOP-CLAIM-01",
		Title:    "SOP: High-Value Claim Escalation Process",
		Category: CategorySOP,
		Summary:  "Internal procedure for handling claims with a valuation exceeding $100,000.",
		Triggers: []string{"$100,000", "$125,000", "High-Value"},
		Citations: []Citation{
			{
				ID:        "CIT-101",
				Source:    "Internal-SOP-Manual.pdf",
				Page:      5,
				Paragraph: "Note C",
				Content:   "Claims exceeding $100k require a secondary compliance check by the Senior Claims Officer before initial offer generation.",
			},
		},
	},
	{
		ID:       "KB-HIPAA-2023",
		Title:    "Telehealth Privacy Stardards - HIPAA Compliance 2023",
		Category: CategoryRegulation,
		Summary:  "Federal regulations regarding data encryption and patient consent in virtual healthcare environments.",
		Triggers: []string{"HIPAA", "Telehealth", "Patient Data"},
		Citations: []Citation{
			{
				ID:        "CIT-501",
				Source:    "Federal-Regulation-Title-45.pdf",
				Page:      302,
				Paragraph: "Subpart E",
				Content:   "Encryption protocols for data-at-rest must follow AES-256 standards for all cloud-hosted patient identifiers.",
			},
		},
	},
}

// Default returns the built-in corpus.
func Default() *Corpus {
	c, err := New(defaultArticles)
	if err != nil {
		// built-in data is validated by tests
		panic(err)
	}
	return c
}

// #endregion default-corpus

// #region default-cases

// DefaultCases returns the sample cases the assistant starts with.
func DefaultCases() []CaseRecord {
	return []CaseRecord{
		{
			ID:          "CLM-9901-X",
			Agent:       "Sarah Jenkins",
			Status:      "In Review",
			Type:        "Insurance Claim",
			ClaimType:   "Flood",
			Location:    "Miami, Florida",
			Amount:      "$125,000",
			Description: "Residential basement flooding following Hurricane Helena. Interior damage to walls and electrical systems reported.",
		},
		{
			ID:          "REG-5520-C",
			Agent:       "Daniel Miller",
			Status:      "Pending Approval",
			Type:        "Regulatory Compliance",
			ClaimType:   "HIPAA Review",
			Location:    "San Jose, California",
			Amount:      "N/A",
			Description: "Routine audit of patient data handling procedures for Telehealth platform.",
		},
	}
}

// #endregion default-cases
