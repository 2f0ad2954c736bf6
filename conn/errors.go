// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package conn

import "errors"

// ErrCheckTimeout is the cause reported to OnClosed when an
// outstanding CHCK goes unanswered past its configured timeout.
var ErrCheckTimeout = errors.New("conn: check timeout")
