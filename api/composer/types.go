package composer

import "fmt"

type EditParam struct {
	Canvas   Canvas    `json:"Canvas"`
	Fps      int       `json:"Fps,omitempty"`
	Segments []Segment `json:"Segments"`
}

type Canvas struct {
	Width  int `json:"Width"`
	Height int `json:"Height"`
}

// Segment is one slide on the timeline. Times are in milliseconds.
type Segment struct {
	Duration   int         `json:"Duration"`
	Elements   []Element   `json:"Elements"`
	Transition *Transition `json:"Transition,omitempty"`
}

type Element struct {
	Type      string `json:"Type"`
	Source    string `json:"Source"`
	StartTime int    `json:"StartTime"`
	EndTime   int    `json:"EndTime"`
	Width     int    `json:"Width"`
	Height    int    `json:"Height"`
}

type Transition struct {
	Type     string `json:"Type"`
	Duration int    `json:"Duration"`
}

type submitRequest struct {
	Space     string    `json:"Space"`
	EditParam EditParam `json:"EditParam"`
}

type ResponseMetadata struct {
	RequestID string    `json:"RequestId"`
	Action    string    `json:"Action,omitempty"`
	Error     *APIError `json:"Error,omitempty"`
}

type APIError struct {
	Code    string `json:"Code"`
	Message string `json:"Message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("remote error %s: %s", e.Code, e.Message)
}

func (m ResponseMetadata) err() error {
	if m.Error != nil && (m.Error.Code != "" || m.Error.Message != "") {
		return m.Error
	}
	return nil
}

type metadataCarrier interface {
	metadata() ResponseMetadata
}

type submitResponse struct {
	ResponseMetadata ResponseMetadata `json:"ResponseMetadata"`
	Result           struct {
		ReqID string `json:"ReqId"`
	} `json:"Result"`
}

func (r *submitResponse) metadata() ResponseMetadata { return r.ResponseMetadata }

type resultResponse struct {
	ResponseMetadata ResponseMetadata `json:"ResponseMetadata"`
	Result           editResult       `json:"Result"`
}

func (r *resultResponse) metadata() ResponseMetadata { return r.ResponseMetadata }

// editResult names the output asset either directly or as the first element
// of a list, depending on the service version.
type editResult struct {
	Status     string   `json:"Status"`
	Message    string   `json:"Message,omitempty"`
	OutputVid  string   `json:"OutputVid,omitempty"`
	OutputVids []string `json:"OutputVids,omitempty"`
}

func (r editResult) outputVid() string {
	if r.OutputVid != "" {
		return r.OutputVid
	}
	for _, v := range r.OutputVids {
		if v != "" {
			return v
		}
	}
	return ""
}

type playInfoResponse struct {
	ResponseMetadata ResponseMetadata `json:"ResponseMetadata"`
	Result           struct {
		MainPlayURL   string `json:"MainPlayUrl"`
		BackupPlayURL string `json:"BackupPlayUrl"`
		DownloadURL   string `json:"DownloadUrl"`
	} `json:"Result"`
}

func (r *playInfoResponse) metadata() ResponseMetadata { return r.ResponseMetadata }
