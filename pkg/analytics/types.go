package analytics

// Company is the analytics company the credentials resolve to.
type Company struct {
	Name            string `json:"companyName" yaml:"name"`
	GlobalCompanyID string `json:"globalCompanyId" yaml:"global_company_id"`
	OrgID           string `json:"-" yaml:"org_id,omitempty"`
}

type discoveryResponse struct {
	IMSOrgs []struct {
		IMSOrgID  string    `json:"imsOrgId"`
		Companies []Company `json:"companies"`
	} `json:"imsOrgs"`
}

type apiError struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
}
