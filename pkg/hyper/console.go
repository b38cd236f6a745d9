package hyper

import "context"

// ConsoleInfo fetches a domain's display URI and extracts the VNC port when
// the URI carries one.
func (c *Client) ConsoleInfo(ctx context.Context, vmID string) (ConsoleInfo, error) {
	out, err := c.run(ctx, "domdisplay", vmID)
	if err != nil {
		return ConsoleInfo{}, err
	}
	return ConsoleInfo{
		DisplayURI: out,
		VNCPort:    ParseDisplayPort(out),
	}, nil
}
