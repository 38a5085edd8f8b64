package protocol

// ContainerStatus distinguishes the container variants.
type ContainerStatus string

const (
	ContainerPaused  ContainerStatus = "paused"
	ContainerRunning ContainerStatus = "running"
)

// Container is one of the user's containers. URL is only set for running
// containers.
type Container struct {
	Status      ContainerStatus `json:"status"`
	Name        string          `json:"name"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	URL         string          `json:"url,omitempty"`
}

// PausedContainer builds a paused container.
func PausedContainer(name, title, description string) Container {
	return Container{Status: ContainerPaused, Name: name, Title: title, Description: description}
}

// RunningContainer builds a running container reachable at url.
func RunningContainer(name, title, description, url string) Container {
	return Container{Status: ContainerRunning, Name: name, Title: title, Description: description, URL: url}
}

// IsRunning reports whether the container is running.
func (c Container) IsRunning() bool {
	return c.Status == ContainerRunning
}
